package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Lllllllleong/contractsigning/internal/stamper"
	"github.com/spf13/cobra"
)

// stampCmd renders both signatures onto a document with the configured
// layout, for tuning coordinates against a real contract.
func stampCmd() *cobra.Command {
	var (
		in, out, signature, auto, label string
	)
	cmd := &cobra.Command{
		Use:   "stamp",
		Short: "Stamp a PDF with the configured signature layout",
		Example: `  signctl stamp --in contrato.pdf --signature firma.png --out prueba.pdf
  SIGNING_CONFIG=layout.yaml signctl stamp --in contrato.pdf --signature firma.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if auto == "" {
				auto = cfg.Assets.AutoSignaturePath
			}
			if label == "" {
				loc, err := cfg.Location()
				if err != nil {
					return err
				}
				label = stamper.SignedDateLabel(time.Now(), loc)
			}

			doc, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			userSig, err := os.ReadFile(signature)
			if err != nil {
				return err
			}
			autoSig, err := os.ReadFile(auto)
			if err != nil {
				return err
			}

			st, err := stamper.New(cfg.Stamp)
			if err != nil {
				return err
			}
			stamped, err := st.Stamp(doc, userSig, autoSig, label)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, stamped, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s written, review the signature positions.\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "unsigned PDF")
	cmd.Flags().StringVarP(&signature, "signature", "s", "", "applicant signature PNG")
	cmd.Flags().StringVar(&auto, "auto", "", "institutional signature PNG (defaults to the configured asset)")
	cmd.Flags().StringVarP(&out, "out", "o", "stamped.pdf", "output PDF")
	cmd.Flags().StringVar(&label, "label", "", "signed date caption (defaults to today)")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}
