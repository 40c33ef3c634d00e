package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/StinkyLord/cad-bom-builder/internal/config"
	"github.com/StinkyLord/cad-bom-builder/internal/logging"
	"github.com/StinkyLord/cad-bom-builder/internal/metrics"
	"github.com/StinkyLord/cad-bom-builder/internal/model"
	"github.com/StinkyLord/cad-bom-builder/internal/native"
	"github.com/StinkyLord/cad-bom-builder/internal/native/snapshot"
	"github.com/StinkyLord/cad-bom-builder/internal/occlusion"
	"github.com/StinkyLord/cad-bom-builder/internal/output"
	"github.com/StinkyLord/cad-bom-builder/internal/scanner"
)

const toolVersion = "1.0.0"

var (
	flagConfig      string
	flagVerbose     bool
	flagMetricsFile string

	flagModel      string
	flagOutput     string
	flagCycloneDX  string
	flagInput      string
	flagIndex      int
	flagWriteModel string
	flagTrace      bool
)

var rootCmd = &cobra.Command{
	Use:   "cad-bom-builder",
	Short: "CAD assembly bill of materials extractor",
	Long: `cad-bom-builder walks a CAD assembly and produces a bill of materials:
one record per manufactured detail, purchased item and detail body, with
normalized materials and sheet / tubular stock totals.

Stored records can be resolved back to the live objects they came from, to
frame them in the active view or to list the parts hiding them.

The assembly is read from a YAML snapshot of the CAD session.`,
	SilenceUsage: true,
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the BOM of an assembly",
	Long: `Walk the assembly and write the extracted records and material summary
as a JSON document.

Examples:
  cad-bom-builder extract --model table.yaml --output bom.json
  cad-bom-builder extract --model table.yaml --output - --cyclonedx hbom.json`,
	RunE: runExtract,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the records and material totals of a stored BOM",
	RunE:  runSummary,
}

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Resolve a stored record to its object in the assembly",
	RunE:  runLocate,
}

var focusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Frame a stored record in the active view",
	Long: `Resolve a stored record, move the view origin to its center and scale
the view to its size.

Examples:
  cad-bom-builder focus --model table.yaml --input bom.json --index 3 --write-model table.yaml`,
	RunE: runFocus,
}

var occludersCmd = &cobra.Command{
	Use:   "occluders",
	Short: "List the parts hiding a stored record from the current view",
	RunE:  runOccluders,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "Path to a YAML config file")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&flagMetricsFile, "metrics-file", "", "Write Prometheus counters to this file on exit")

	extractCmd.Flags().StringVarP(&flagModel, "model", "m", "", "Path to the assembly snapshot")
	extractCmd.Flags().StringVarP(&flagOutput, "output", "o", "bom.json", "Output file path (use '-' for stdout)")
	extractCmd.Flags().StringVar(&flagCycloneDX, "cyclonedx", "", "Also write a CycloneDX hardware BOM to this path")
	_ = extractCmd.MarkFlagRequired("model")

	summaryCmd.Flags().StringVarP(&flagInput, "input", "i", "bom.json", "Stored BOM document")

	for _, c := range []*cobra.Command{locateCmd, focusCmd, occludersCmd} {
		c.Flags().StringVarP(&flagModel, "model", "m", "", "Path to the assembly snapshot")
		c.Flags().StringVarP(&flagInput, "input", "i", "bom.json", "Stored BOM document")
		c.Flags().IntVarP(&flagIndex, "index", "n", 0, "Position of the record in the stored document")
		_ = c.MarkFlagRequired("model")
	}
	focusCmd.Flags().StringVar(&flagWriteModel, "write-model", "", "Write the snapshot with the updated view to this path")
	occludersCmd.Flags().BoolVar(&flagTrace, "trace", false, "Print the cast ray and sample points")

	rootCmd.AddCommand(extractCmd, summaryCmd, locateCmd, focusCmd, occludersCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is the per-invocation runtime: configuration, logger, counters and a
// scanner over an offline session.
type env struct {
	cfg     config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	session *snapshot.Session
	scanner *scanner.Scanner
}

func setup() (*env, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagVerbose {
		cfg.Logging.Level = "debug"
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	session := snapshot.NewSession()
	return &env{
		cfg:     cfg,
		log:     log,
		metrics: m,
		session: session,
		scanner: scanner.New(session, cfg, log, m),
	}, nil
}

func (e *env) close() {
	if flagMetricsFile != "" {
		if err := e.metrics.WriteTextfile(flagMetricsFile); err != nil {
			e.log.Warn("failed to write metrics", zap.String("path", flagMetricsFile), zap.Error(err))
		}
	}
	_ = e.log.Sync()
}

func runExtract(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()
	ctx := cmd.Context()

	fmt.Fprintf(os.Stderr, "cad-bom-builder v%s\n", toolVersion)
	fmt.Fprintf(os.Stderr, "Reading: %s\n", flagModel)

	if err := e.scanner.Open(ctx, flagModel); err != nil {
		return fmt.Errorf("cannot open the model: %w", err)
	}
	res, err := e.scanner.Extract(ctx)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	defer func() {
		if err := res.Release(); err != nil {
			e.log.Warn("record handles failed to release", zap.Error(err))
		}
	}()

	fmt.Fprintf(os.Stderr, "Found %d record(s)\n", len(res.Records))

	doc := output.NewDocument(res.Source, res.Records, res.Summary, toolVersion)
	if err := output.WriteDocument(doc, flagOutput); err != nil {
		return fmt.Errorf("failed to write the BOM document: %w", err)
	}
	if flagOutput != "-" {
		fmt.Fprintf(os.Stderr, "BOM written to: %s\n", flagOutput)
	}

	if flagCycloneDX != "" {
		assembly := ""
		if m := e.session.Active(); m != nil {
			assembly = m.Spec().Root.Name
		}
		if err := output.WriteCycloneDX(doc, assembly, flagCycloneDX, toolVersion); err != nil {
			return fmt.Errorf("failed to write CycloneDX output: %w", err)
		}
		if flagCycloneDX != "-" {
			fmt.Fprintf(os.Stderr, "CycloneDX BOM written to: %s\n", flagCycloneDX)
		}
	}
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	doc, err := output.LoadDocument(flagInput)
	if err != nil {
		return err
	}
	printRecords(os.Stdout, doc)
	printSummary(os.Stdout, model.Aggregate(doc.Rows()))
	reportUnlocatable(doc)
	return nil
}

// resolve opens the model and locates the stored record at --index. The
// caller owns the returned object.
func resolve(ctx context.Context, e *env) (native.Object, output.StoredRecord, error) {
	doc, err := output.LoadDocument(flagInput)
	if err != nil {
		return nil, output.StoredRecord{}, err
	}
	reportUnlocatable(doc)
	rec, err := doc.Record(flagIndex)
	if err != nil {
		return nil, rec, err
	}
	if err := e.scanner.Open(ctx, flagModel); err != nil {
		return nil, rec, fmt.Errorf("cannot open the model: %w", err)
	}
	obj, ok, err := e.scanner.Locate(ctx, rec.IdentityKey)
	if err != nil {
		return nil, rec, err
	}
	if !ok {
		return nil, rec, fmt.Errorf("%s #%d (%s) is not in the assembly", rec.Name, rec.Index(), rec.Marking)
	}
	return obj, rec, nil
}

func runLocate(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	obj, rec, err := resolve(cmd.Context(), e)
	if err != nil {
		return err
	}
	defer obj.Release()

	kind := "part"
	if rec.BodyBased {
		kind = "body"
	}
	fmt.Fprintf(os.Stdout, "%s #%d: %s (object %d)\n", kind, rec.Index(), native.Describe(obj), obj.ID())
	return nil
}

func runFocus(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()
	ctx := cmd.Context()

	obj, _, err := resolve(ctx, e)
	if err != nil {
		return err
	}
	defer obj.Release()

	center, scale, err := e.scanner.Focus(ctx, obj)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "center: %.3f %.3f %.3f\nscale:  %.6g\n", center.X, center.Y, center.Z, scale)

	if flagWriteModel != "" {
		if err := e.session.Active().Spec().WriteFile(flagWriteModel); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Model written to: %s\n", flagWriteModel)
	}
	return nil
}

func runOccluders(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()
	ctx := cmd.Context()

	obj, _, err := resolve(ctx, e)
	if err != nil {
		return err
	}
	defer obj.Release()

	var trace *occlusion.RayTrace
	if flagTrace {
		trace = &occlusion.RayTrace{}
	}
	parts, err := e.scanner.Occluders(ctx, obj, trace)
	if err != nil {
		return err
	}
	defer occlusion.ReleaseParts(parts)

	if len(parts) == 0 {
		fmt.Fprintln(os.Stdout, "No occluding parts")
	}
	for _, p := range parts {
		fmt.Fprintln(os.Stdout, native.Describe(p))
	}
	if trace != nil {
		fmt.Fprintf(os.Stderr, "camera %v -> target %v, distance %.1f, %d sample(s), %d failed\n",
			trace.Camera, trace.Target, trace.Distance, len(trace.Samples), len(trace.Failed))
	}
	return nil
}

func reportUnlocatable(doc *output.Document) {
	for _, u := range doc.Unlocatable {
		fmt.Fprintf(os.Stderr, "Warning: stored record %d (%s) cannot be located: %s\n", u.Position, u.Name, u.Reason)
	}
}

func printRecords(w io.Writer, doc *output.Document) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tMARKING\tCLASS\tMATERIAL\tMASS\tINSTANCE")
	for i, r := range doc.Records {
		if !r.Readable() {
			fmt.Fprintf(tw, "%d\t(unreadable record)\t\t\t\t\t\n", i)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.3f\t%d\n",
			i, r.Name, r.Marking, r.Classification, r.Material, r.Mass, r.Index())
	}
	_ = tw.Flush()
}

func printSummary(w io.Writer, s *model.Summary) {
	section := func(title string, list []model.MaterialAggregate, withLength bool) {
		if len(list) == 0 {
			return
		}
		fmt.Fprintf(w, "\n%s\n", title)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, a := range list {
			if withLength {
				fmt.Fprintf(tw, "  %s\t%.3f kg\t%.1f mm\n", a.Material, a.Mass, a.Length)
			} else {
				fmt.Fprintf(tw, "  %s\t%.3f kg\n", a.Material, a.Mass)
			}
		}
		_ = tw.Flush()
	}
	section("Sheet materials:", s.Sheet, false)
	section("Tubular products:", s.Tubular, true)
	section("Other materials:", s.Other, false)
}
