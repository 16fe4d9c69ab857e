package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/habiliai/memoryd/config"
	"github.com/habiliai/memoryd/extraction"
	"github.com/habiliai/memoryd/internal/mylog"
	"github.com/habiliai/memoryd/memory"
	"github.com/habiliai/memoryd/record"
	"github.com/jcooky/go-din"
	"github.com/mokiat/gog"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newCmd() *cobra.Command {
	params := &struct {
		Apply   bool
		Force   bool
		Profile string
		Out     string
		User    string
	}{}

	cmd := &cobra.Command{
		Use:   "memory-bootstrap",
		Short: "Extract namespaced memories from a user profile",
		Long: `Reads a free-text profile, splits it into atomic statements and routes each
one to a memory namespace. Without --apply only YAML artifacts are written.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := din.NewContainer(cmd.Context(), din.EnvProd)
			defer c.Close()

			bootConf := din.MustGetT[*config.BootstrapConfig](c)
			memConf := din.MustGetT[*config.MemoryConfig](c)
			logger := din.MustGet[*slog.Logger](c, mylog.Key)
			pipeline := din.MustGetT[*extraction.Pipeline](c)

			opts := extraction.RunOptions{
				UserID:       lo.CoalesceOrEmpty(params.User, memConf.UserID),
				ArtifactsDir: lo.CoalesceOrEmpty(params.Out, bootConf.ArtifactsDir),
				Apply:        params.Apply,
				Force:        params.Force,
			}
			profilePath := lo.CoalesceOrEmpty(params.Profile, bootConf.ProfilePath)

			profile, err := os.ReadFile(profilePath)
			if err != nil {
				return errors.Wrapf(err, "failed to read profile %s", profilePath)
			}
			opts.Profile = string(profile)

			var store extraction.Store
			if opts.Apply {
				store = din.MustGetT[*memory.Service](c)
			}

			logger.Debug("start memory-bootstrap", "profile", profilePath, "user", opts.UserID, "apply", opts.Apply, "force", opts.Force)
			report, err := pipeline.Run(c, opts, store)
			if report != nil {
				printReport(cmd.OutOrStdout(), report, opts)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.BoolVar(&params.Apply, "apply", false, "Write the extracted memories to the stores")
	f.BoolVar(&params.Force, "force", false, "Regenerate every namespace, ignoring existing hashes")
	f.StringVar(&params.Profile, "profile", "", "Profile text file (default from PROFILE_PATH)")
	f.StringVarP(&params.Out, "out", "o", "", "Artifacts directory (default from ARTIFACTS_DIR)")
	f.StringVar(&params.User, "user", "", "User id to extract for (default from USER_ID)")

	return cmd
}

func printReport(w io.Writer, report *extraction.Report, opts extraction.RunOptions) {
	mode := "dry run"
	if opts.Apply {
		mode = "apply"
	}
	if opts.Force {
		mode += ", force"
	}
	fmt.Fprintf(w, "memory bootstrap for %s (%s)\n", opts.UserID, mode)

	if report.Result != nil {
		lines := gog.Map(report.Namespaces(), func(ns record.Namespace) string {
			return fmt.Sprintf("  %-32s %d", ns, len(report.Records[ns]))
		})
		if len(lines) == 0 {
			fmt.Fprintln(w, "  no new statements")
		} else {
			fmt.Fprintln(w, strings.Join(lines, "\n"))
		}
		fmt.Fprintf(w, "new: %d, skipped: %d\n", report.Count(), report.Skipped)
		for ns, err := range report.Failed {
			fmt.Fprintf(w, "failed %s: %v\n", ns, err)
		}
	}
	if opts.Apply {
		fmt.Fprintf(w, "written: %d, replaced: %d\n", report.Written, report.Purged)
	}
	for _, path := range report.Artifacts {
		fmt.Fprintf(w, "artifact: %s\n", path)
	}
}
