package common

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ducminhle1904/crypto-trade-engine/internal/config"
)

// CommonFlags contains flags that are shared by the trader and backtest commands
type CommonFlags struct {
	EnvFile    *string
	ConfigFile *string
	DataRoot   *string

	Verbose  *bool
	Silent   *bool
	NoEmojis *bool

	Version *bool
}

// RegisterCommonFlags registers the shared flags on fs
func RegisterCommonFlags(fs *flag.FlagSet) *CommonFlags {
	return &CommonFlags{
		EnvFile:    fs.String("env", ".env", "Environment file path"),
		ConfigFile: fs.String("config", "", "YAML or JSON config file (bare names are read from configs/)"),
		DataRoot:   fs.String("data-root", "data", "Data root directory"),

		Verbose:  fs.Bool("verbose", false, "Enable verbose output"),
		Silent:   fs.Bool("silent", false, "Minimal output"),
		NoEmojis: fs.Bool("no-emojis", false, "Disable emoji output"),

		Version: fs.Bool("version", false, "Show version information"),
	}
}

// LoadConfig reads the config file when one is given, otherwise the env
// file and process environment.
func (c *CommonFlags) LoadConfig() (*config.Config, error) {
	if *c.ConfigFile != "" {
		return config.LoadFile(*c.ConfigFile)
	}
	return config.Load(*c.EnvFile)
}

// FlagValidator collects flag validation errors
type FlagValidator struct {
	errors []string
}

// NewFlagValidator creates a new flag validator
func NewFlagValidator() *FlagValidator {
	return &FlagValidator{}
}

// ValidateFloat validates a float flag value
func (v *FlagValidator) ValidateFloat(name string, value float64, min, max float64) *FlagValidator {
	if !(value >= min && value <= max) {
		v.errors = append(v.errors, fmt.Sprintf("%s must be between %.4f and %.4f, got: %.4f", name, min, max, value))
	}
	return v
}

// ValidateInt validates an int flag value
func (v *FlagValidator) ValidateInt(name string, value int, min, max int) *FlagValidator {
	if value < min || value > max {
		v.errors = append(v.errors, fmt.Sprintf("%s must be between %d and %d, got: %d", name, min, max, value))
	}
	return v
}

// ValidateChoice validates that a string is one of the allowed choices
func (v *FlagValidator) ValidateChoice(name, value string, choices []string) *FlagValidator {
	for _, choice := range choices {
		if value == choice {
			return v
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of [%s], got: %s", name, strings.Join(choices, ", "), value))
	return v
}

// ValidateFile validates that a file exists
func (v *FlagValidator) ValidateFile(name, path string, required bool) *FlagValidator {
	if path == "" {
		if required {
			v.errors = append(v.errors, fmt.Sprintf("%s is required", name))
		}
		return v
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		v.errors = append(v.errors, fmt.Sprintf("%s file does not exist: %s", name, path))
	}
	return v
}

// AddError adds a custom validation error
func (v *FlagValidator) AddError(message string) *FlagValidator {
	v.errors = append(v.errors, message)
	return v
}

// HasErrors returns true if there are validation errors
func (v *FlagValidator) HasErrors() bool {
	return len(v.errors) > 0
}

// GetError returns a formatted error with all validation errors
func (v *FlagValidator) GetError() error {
	switch len(v.errors) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("validation error: %s", v.errors[0])
	}
	return fmt.Errorf("validation errors:\n  - %s", strings.Join(v.errors, "\n  - "))
}

// PrintErrors writes all validation errors to w
func (v *FlagValidator) PrintErrors(w io.Writer) {
	if len(v.errors) == 0 {
		return
	}
	fmt.Fprintf(w, "Flag validation errors:\n")
	for _, err := range v.errors {
		fmt.Fprintf(w, "   • %s\n", err)
	}
}

// UsageFormatter prints usage with examples
type UsageFormatter struct {
	AppName        string
	AppDescription string
	Examples       []UsageExample
}

// UsageExample represents a usage example
type UsageExample struct {
	Command     string
	Description string
}

// NewUsageFormatter creates a new usage formatter
func NewUsageFormatter(appName, description string) *UsageFormatter {
	return &UsageFormatter{AppName: appName, AppDescription: description}
}

// AddExample adds a usage example
func (u *UsageFormatter) AddExample(command, description string) *UsageFormatter {
	u.Examples = append(u.Examples, UsageExample{Command: command, Description: description})
	return u
}

// Install makes u the usage function of fs
func (u *UsageFormatter) Install(fs *flag.FlagSet) {
	fs.Usage = func() { u.PrintUsage(fs) }
}

// PrintUsage prints formatted usage information to the flag set's output
func (u *UsageFormatter) PrintUsage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "%s - %s\n\n", u.AppName, u.AppDescription)
	fmt.Fprintf(w, "USAGE:\n  %s [OPTIONS]\n\n", filepath.Base(fs.Name()))

	if len(u.Examples) > 0 {
		fmt.Fprintf(w, "EXAMPLES:\n")
		for _, example := range u.Examples {
			fmt.Fprintf(w, "  # %s\n  %s\n\n", example.Description, example.Command)
		}
	}

	fmt.Fprintf(w, "OPTIONS:\n")
	fs.PrintDefaults()
}

// ParseAndValidate parses args into fs and runs validate on the result.
func ParseAndValidate(fs *flag.FlagSet, args []string, validate func(*FlagValidator)) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if validate == nil {
		return nil
	}

	v := NewFlagValidator()
	validate(v)
	if v.HasErrors() {
		v.PrintErrors(fs.Output())
		return v.GetError()
	}
	return nil
}

// CheckVersion prints the version when -version was given
func CheckVersion(w io.Writer, appName string, flags *CommonFlags) bool {
	if *flags.Version {
		PrintVersion(w, appName)
		return true
	}
	return false
}

// SetupLogger builds a CLI logger from the shared flags
func SetupLogger(w io.Writer, flags *CommonFlags) *Logger {
	l := NewLogger(w)
	if *flags.Silent {
		l.SetSilentMode(true)
	}
	if *flags.Verbose {
		l.Level = LogLevelDebug
	}
	if *flags.NoEmojis {
		l.ShowEmojis = false
	}
	return l
}
