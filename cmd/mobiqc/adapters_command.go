package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mobiqc/internal/config"
	"mobiqc/internal/logging"
	"mobiqc/internal/modality"
)

// modalityTitles covers names that do not title-case cleanly.
var modalityTitles = map[string]string{
	"eeg": "EEG",
	"et":  "Eye tracking",
	"ecg": "ECG",
	"eda": "EDA",
	"rsp": "Respiration",
	"mic": "Microphone",
}

func newAdaptersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List modality adapters in report order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries, err := modality.NewRegistry(cfg, logging.NewNop())
			if err != nil {
				return err
			}
			enabled := make(map[string]modality.Entry, len(entries))
			for _, e := range entries {
				enabled[e.Modality] = e
			}

			rows := make([][]string, 0, len(config.Modalities))
			for _, name := range config.Modalities {
				backend := "disabled"
				if e, ok := enabled[name]; ok {
					backend = e.Backend
					if e.Backend != modality.BackendBuiltin {
						backend = strings.TrimSpace(strings.Join(append([]string{e.Backend}, cfg.Adapter(name).Args...), " "))
					}
				}
				rows = append(rows, []string{name + "_", modalityTitle(name), backend})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Prefix", "Modality", "Backend"}, rows, nil))
			return nil
		},
	}
}

func modalityTitle(name string) string {
	if title, ok := modalityTitles[name]; ok {
		return title
	}
	return cases.Title(language.English).String(name)
}
