package output

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/StinkyLord/cad-bom-builder/internal/model"
)

// ---- CycloneDX 1.4 JSON schema types ----

type cdxBOM struct {
	BOMFormat    string         `json:"bomFormat"`
	SpecVersion  string         `json:"specVersion"`
	Version      int            `json:"version"`
	SerialNumber string         `json:"serialNumber"`
	Metadata     cdxMetadata    `json:"metadata"`
	Components   []cdxComponent `json:"components"`
}

type cdxMetadata struct {
	Timestamp string        `json:"timestamp"`
	Tools     []cdxTool     `json:"tools"`
	Component *cdxComponent `json:"component,omitempty"`
}

type cdxTool struct {
	Vendor  string `json:"vendor"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

type cdxComponent struct {
	Type        string        `json:"type"`
	BOMRef      string        `json:"bom-ref,omitempty"`
	Name        string        `json:"name"`
	Version     string        `json:"version,omitempty"`
	Description string        `json:"description,omitempty"`
	Properties  []cdxProperty `json:"properties,omitempty"`
}

type cdxProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// WriteCycloneDX serialises an extracted BOM as a CycloneDX 1.4 hardware BOM
// and writes it to outputPath. If outputPath is "-", it writes to stdout.
// assembly names the metadata component; it may be empty.
func WriteCycloneDX(doc *Document, assembly, outputPath, toolVersion string) error {
	return writeJSON(outputPath, buildCycloneDX(doc, assembly, toolVersion))
}

func buildCycloneDX(doc *Document, assembly, toolVersion string) cdxBOM {
	serial := doc.SerialNumber
	if serial == "" {
		serial = uuid.New().URN()
	}
	bom := cdxBOM{
		BOMFormat:    "CycloneDX",
		SpecVersion:  "1.4",
		Version:      1,
		SerialNumber: serial,
		Metadata: cdxMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Tools: []cdxTool{
				{
					Vendor:  "StinkyLord",
					Name:    "cad-bom-builder",
					Version: toolVersion,
				},
			},
		},
		Components: make([]cdxComponent, 0, len(doc.Records)),
	}
	if assembly != "" {
		bom.Metadata.Component = &cdxComponent{
			Type:        "device",
			Name:        assembly,
			Description: doc.Source,
		}
	}

	// Records keep extraction order. Parts of different files can share a
	// key without the file path, so the position makes each bom-ref unique.
	for i, r := range doc.Records {
		comp := cdxComponent{
			Type:    "device",
			BOMRef:  bomRef(i, r),
			Name:    r.Name,
			Version: r.Marking,
		}
		comp.Properties = append(comp.Properties,
			cdxProperty{Name: "bom:classification", Value: r.Classification.String()},
			cdxProperty{Name: "bom:instanceIndex", Value: strconv.Itoa(r.Index())},
			cdxProperty{Name: "bom:mass", Value: formatFloat(r.Mass)},
		)
		if r.BodyBased {
			comp.Properties = append(comp.Properties, cdxProperty{Name: "bom:bodyBased", Value: "true"})
		}
		if r.Section != "" {
			comp.Properties = append(comp.Properties, cdxProperty{Name: "bom:section", Value: r.Section})
		}
		if r.Material != "" {
			comp.Properties = append(comp.Properties, cdxProperty{Name: "bom:material", Value: r.Material})
		}
		if r.Classification == model.TubularProduct {
			comp.Properties = append(comp.Properties, cdxProperty{Name: "bom:length", Value: formatFloat(r.Length)})
		}
		if r.FilePath != "" {
			comp.Properties = append(comp.Properties, cdxProperty{Name: "bom:filePath", Value: r.FilePath})
		}
		bom.Components = append(bom.Components, comp)
	}
	return bom
}

func bomRef(pos int, r StoredRecord) string {
	kind := "part"
	if r.BodyBased {
		kind = "body"
	}
	return kind + ":" + r.Name + ":" + r.Marking + ":" + strconv.Itoa(r.Index()) + "@" + strconv.Itoa(pos)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
