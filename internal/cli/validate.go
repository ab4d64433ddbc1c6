package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/casetrail/internal/config"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Print bool // print the effective configuration
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Config *config.Config `json:"config,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate the configuration named by --config, after applying defaults
and CASETRAIL_* environment overrides. Checks the schema and that the
label taxonomy classifies every operation label.

Exit codes:
  0 - Configuration valid
  1 - Configuration invalid
  2 - Command error (file not readable)

Examples:
  casetrail validate --config ./casetrail.yaml
  casetrail validate --config ./casetrail.yaml --print`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Print, "print", false, "print the effective configuration")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	source := opts.Config
	if source == "" {
		source = "defaults"
	}
	f.VerboseLog("Validating configuration from %s", source)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return outputValidateError(f, err)
	}

	result := ValidationResult{Valid: true}
	if opts.Print {
		result.Config = &cfg
	}
	return f.Success(result, func(w io.Writer) error {
		fmt.Fprintf(w, "Configuration valid (%s)\n", source)
		if opts.Print {
			fmt.Fprintln(w)
			return cfg.Encode(w)
		}
		return nil
	})
}

// outputValidateError reports a config error. Unreadable files are command
// errors; anything the file says wrong is a validation failure.
func outputValidateError(f *OutputFormatter, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		_ = f.Error("CONFIG_UNREADABLE", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read config", err)
	}

	var details interface{}
	var verr *config.ValidationError
	if errors.As(err, &verr) && verr.Field != "" {
		details = map[string]string{"field": verr.Field}
	}
	_ = f.Error("INVALID_CONFIG", err.Error(), details)
	return WrapExitError(ExitFailure, "configuration invalid", err)
}
