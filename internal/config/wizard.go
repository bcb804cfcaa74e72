package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"
)

// RunWizard interactively builds a SuiteFile and writes it to
// .wingman/config.yaml, adapted from the teacher's pkg/core/init.go
// huh.NewForm setup flow (huh.NewSelect/huh.NewInput grouped into a
// huh.NewForm with the Dracula theme).
func RunWizard(workDir string) (SuiteFile, error) {
	var (
		featurePath  string = "features/"
		tagExpr      string
		threadsStr   string = "4"
		outputDir    string = "wingman-results"
		useOAuth     bool
		tokenURL     string
		clientID     string
		clientSecret string
	)

	fmt.Println()
	fmt.Println("  Welcome to wingman - let's configure your suite.")
	fmt.Println()

	basics := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Feature directory").
				Description("Where your .feature files live.").
				Placeholder("features/").
				Value(&featurePath),
			huh.NewInput().
				Title("Tag expression").
				Description("e.g. @smoke or ~@slow. Leave blank to run everything.").
				Value(&tagExpr),
			huh.NewInput().
				Title("Threads").
				Description("Max concurrent scenarios.").
				Placeholder("4").
				Value(&threadsStr),
			huh.NewInput().
				Title("Output directory").
				Placeholder("wingman-results").
				Value(&outputDir),
		),
	).WithTheme(huh.ThemeDracula())

	if err := basics.Run(); err != nil {
		return SuiteFile{}, fmt.Errorf("config: wizard cancelled: %w", err)
	}

	oauthForm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Configure OAuth2 client-credentials auth?").
				Value(&useOAuth),
		),
	).WithTheme(huh.ThemeDracula())
	if err := oauthForm.Run(); err != nil {
		return SuiteFile{}, fmt.Errorf("config: wizard cancelled: %w", err)
	}

	if useOAuth {
		credsForm := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().Title("Token URL").Value(&tokenURL),
				huh.NewInput().Title("Client ID").Value(&clientID),
				huh.NewInput().Title("Client secret").EchoMode(huh.EchoModePassword).Value(&clientSecret),
			),
		).WithTheme(huh.ThemeDracula())
		if err := credsForm.Run(); err != nil {
			return SuiteFile{}, fmt.Errorf("config: wizard cancelled: %w", err)
		}
	}

	threads := 4
	if n, err := parsePositiveInt(threadsStr); err == nil {
		threads = n
	}

	f := SuiteFile{
		Paths:     []string{featurePath},
		Tags:      tagExpr,
		Threads:   threads,
		OutputDir: outputDir,
		HTTP:      HTTPConfig{TimeoutSeconds: 30},
	}
	if useOAuth {
		f.HTTP.OAuth2 = &OAuth2Config{TokenURL: tokenURL, ClientID: clientID, ClientSecret: clientSecret}
	}

	if err := writeConfigFile(workDir, f); err != nil {
		return SuiteFile{}, err
	}
	return f, nil
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("config: %q is not a positive integer", s)
	}
	return n, nil
}

func writeConfigFile(workDir string, f SuiteFile) error {
	dir := filepath.Join(workDir, ".wingman")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: creating .wingman dir: %w", err)
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("config: marshaling wizard result: %w", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}
