package native

// SameObject reports whether a and b refer to the same native object.
// Nil parts never match.
func SameObject(a, b Object) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ID() == b.ID()
}

// Describe returns "name (marking)" for log fields, ignoring native errors.
func Describe(o Object) string {
	if o == nil {
		return ""
	}
	name, _ := o.Name()
	marking, _ := o.Marking()
	if marking == "" {
		return name
	}
	return name + " (" + marking + ")"
}
