package main

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/sbkube/sbkube/internal/log"
	"github.com/sbkube/sbkube/internal/report"
)

// Settings holds the global flags every sbkube command shares, grounded in
// the teacher's cli.EnvSettings pattern (pkg/cli): a package-level value
// populated by AddFlags/Init before any command runs (spec.md §6.1 "Global
// options").
type Settings struct {
	KubeconfigPath string
	KubeContext    string
	Namespace      string
	Verbose        bool
	DryRun         bool
	Format         string
	ConfigFile     string
}

func (s *Settings) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.KubeconfigPath, "kubeconfig", "", "path to the kubeconfig file")
	fs.StringVar(&s.KubeContext, "context", "", "kubeconfig context to use")
	fs.StringVarP(&s.Namespace, "namespace", "n", "", "default namespace override")
	fs.BoolVarP(&s.Verbose, "verbose", "v", false, "verbose output")
	fs.BoolVar(&s.DryRun, "dry-run", false, "log external commands without executing them")
	fs.StringVar(&s.Format, "format", "human", "output format: human|json|yaml|llm")
	fs.StringVarP(&s.ConfigFile, "file", "f", "", "path to sbkube.yaml (alternative to a positional target)")

	// Deprecated flags (spec.md §6.1): accepted for backward compatibility,
	// emit a warning naming the replacement, never otherwise consulted.
	fs.String("base-dir", "", "deprecated: use a positional TARGET")
	fs.String("app-dir", "", "deprecated: use settings.app_dirs in sbkube.yaml")
	fs.String("config-file", "", "deprecated: use --file")
	fs.String("source", "", "deprecated: use settings.helm_repos/git_repos in sbkube.yaml")
	_ = fs.MarkHidden("base-dir")
	_ = fs.MarkHidden("app-dir")
	_ = fs.MarkHidden("config-file")
	_ = fs.MarkHidden("source")
}

// warnDeprecatedFlags emits one stderr line per deprecated flag the user
// actually set, naming its replacement (spec.md §6.1 "Deprecated options").
func warnDeprecatedFlags(fs *pflag.FlagSet) {
	replacements := map[string]string{
		"base-dir":    "a positional TARGET",
		"app-dir":     "settings.app_dirs in sbkube.yaml",
		"config-file": "--file",
		"source":      "settings.helm_repos/git_repos in sbkube.yaml",
	}
	for name, replacement := range replacements {
		if f := fs.Lookup(name); f != nil && f.Changed {
			os.Stderr.WriteString("Warning: --" + name + " is deprecated; use " + replacement + " instead.\n")
		}
	}
}

// Format resolves the --format flag into a report.Format, defaulting to
// human on an unrecognized value rather than failing the command.
func (s *Settings) format() report.Format {
	switch report.Format(s.Format) {
	case report.FormatJSON, report.FormatYAML, report.FormatLLM:
		return report.Format(s.Format)
	default:
		return report.FormatHuman
	}
}

// Logger builds the Logger backing this invocation's --format/--verbose
// choice (internal/log; see SPEC_FULL.md AMBIENT STACK "Logging").
func (s *Settings) Logger() log.Logger {
	if s.format() == report.FormatJSON {
		return log.NewJSONLogger(os.Stderr, s.Verbose)
	}
	return log.NewReadableTextLogger(os.Stderr, s.Verbose)
}

// effectiveKubeconfig resolves --kubeconfig, falling back to $KUBECONFIG
// (spec.md §6.3).
func (s *Settings) effectiveKubeconfig() string {
	if s.KubeconfigPath != "" {
		return s.KubeconfigPath
	}
	return os.Getenv("KUBECONFIG")
}
