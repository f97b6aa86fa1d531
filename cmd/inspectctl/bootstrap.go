package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/stwalsh4118/fieldtrack/internal/codes"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Seed a job's InfoBy category configuration from code descriptions",
	Long: `Scans code descriptions for entry, refusal, estimation, priced and
special keywords and saves the result as the job's configuration.

--codes accepts a JSON array of {"code","description"} objects or a raw
vendor code file. Without --codes the job's stored code file is used.`,
	RunE: runBootstrap,
}

func init() {
	f := bootstrapCmd.Flags()
	f.String("job", "", "job ID")
	f.String("vendor", "", "vendor dialect: BRT or Microsystems (default: the job's vendor)")
	f.String("codes", "", "code definitions file")
	_ = bootstrapCmd.MarkFlagRequired("job")

	rootCmd.AddCommand(bootstrapCmd)
}

// readDefinitions decodes a definitions list, falling back to the vendor's
// code file layout.
func readDefinitions(vendor codes.VendorDialect, raw []byte) ([]codes.CodeDefinition, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var defs []codes.CodeDefinition
		if err := json.Unmarshal(trimmed, &defs); err != nil {
			return nil, eris.Wrap(err, "decode code definitions")
		}
		return defs, nil
	}
	return codes.ExtractDefinitions(vendor, raw)
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	jobID, _ := cmd.Flags().GetString("job")
	vendorRaw, _ := cmd.Flags().GetString("vendor")
	codesPath, _ := cmd.Flags().GetString("codes")

	var vendor codes.VendorDialect
	if vendorRaw != "" {
		v, err := codes.ParseVendor(vendorRaw)
		if err != nil {
			return err
		}
		vendor = v
	}

	var defs []codes.CodeDefinition
	if codesPath != "" {
		if vendor == codes.VendorUnknown {
			return eris.New("bootstrap: --vendor is required with --codes")
		}
		raw, err := os.ReadFile(codesPath)
		if err != nil {
			return eris.Wrap(err, "bootstrap: read codes")
		}
		if defs, err = readDefinitions(vendor, raw); err != nil {
			return err
		}
	}

	svc, closeDB, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	saved, err := svc.BootstrapConfig(ctx, jobID, vendor, defs)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(saved); err != nil {
		return eris.Wrap(err, "bootstrap: print config")
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved configuration for job %s (%s)\n", jobID, saved.Vendor)
	return nil
}
