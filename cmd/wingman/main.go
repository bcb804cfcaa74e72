// Command wingman is the CLI entry point: run a suite, serve a mock from a
// feature file, run the setup wizard, or self-update the binary. Adapted
// from the teacher's cmd/falcon/main.go cobra root command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/blang/semver"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
	"github.com/spf13/cobra"

	"github.com/wingman-run/wingman/internal/compat"
	"github.com/wingman-run/wingman/internal/config"
	"github.com/wingman-run/wingman/internal/driver"
	"github.com/wingman-run/wingman/internal/engine"
	"github.com/wingman-run/wingman/internal/mock"
	"github.com/wingman-run/wingman/internal/model"
	"github.com/wingman-run/wingman/internal/perfsink"
	"github.com/wingman-run/wingman/internal/report"
	"github.com/wingman-run/wingman/internal/tui"
)

// version is injected by -ldflags at release build time (GoReleaser-style,
// matching the teacher's cmd/falcon/main.go).
var version = "dev"

const githubSlug = "wingman-run/wingman"

var (
	cfgFile      string
	tagExpr      string
	threads      int
	outputDir    string
	copyFailure  bool
	noTUI        bool

	rootCmd = &cobra.Command{
		Use:   "wingman",
		Short: "wingman runs behavior-driven API/UI test suites",
	}
)

func init() {
	compat.EngineVersion = version

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "suite config file (default .wingman/config.yaml)")
	rootCmd.AddCommand(runCmd, mockCmd, initCmd, selfUpdateCmd, versionCmd)

	runCmd.Flags().StringVar(&tagExpr, "tags", "", "tag expression override")
	runCmd.Flags().IntVar(&threads, "threads", 0, "concurrent scenario threads override")
	runCmd.Flags().StringVar(&outputDir, "output", "", "output directory override")
	runCmd.Flags().BoolVar(&copyFailure, "copy-failure", false, "copy the first failing scenario's repro curl command to the clipboard")
	runCmd.Flags().BoolVar(&noTUI, "no-tui", false, "disable the live dashboard and print a plain summary instead")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wingman %s\n", version)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run a suite of features",
	RunE: func(cmd *cobra.Command, args []string) error {
		suiteFile, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := compat.CheckMinVersion(suiteFile.MinEngineVersion); err != nil {
			return err
		}
		applyOverrides(&suiteFile)

		features, loadErrs := loadSuiteFeatures(suiteFile)
		for _, e := range loadErrs {
			fmt.Fprintf(os.Stderr, "warning: %v\n", e)
		}
		if len(features) == 0 {
			return fmt.Errorf("run: no features matched %v", suiteFile.Paths)
		}

		httpClient := engine.NewDefaultHTTPClient(suiteFile.Timeout(), suiteFile.HTTP.RateLimit)

		var dash *tui.Dashboard
		var listener engine.ResultListener
		if noTUI {
			listener = engine.NewMultiListener()
		} else {
			dash = tui.NewDashboard()
			listener = dash
		}

		runner := engine.NewSuiteRunner(engine.SuiteConfig{
			Features:      features,
			TagExpr:       suiteFile.Tags,
			Threads:       suiteFile.Threads,
			EngineFactory: engine.DefaultEngineFactory,
			HTTP:          httpClient,
			Perf:          perfsink.NewOtelPerfHook(),
			Driver:        driver.NewFactory(cmd.Context()),
			Listener:      listener,
		})

		resultCh := make(chan engine.SuiteResult, 1)
		go func() { resultCh <- runner.Run(context.Background()) }()

		var result engine.SuiteResult
		if dash != nil {
			// Dashboard.Run blocks on the bubbletea event loop; it exits once
			// OnSuiteEnd fires (or the user quits early).
			r, err := dash.Run()
			if err != nil {
				return fmt.Errorf("run: dashboard: %w", err)
			}
			result = r
		} else {
			result = <-resultCh
		}

		if err := report.PrepareOutputDir(suiteFile.OutputDir); err != nil {
			return err
		}
		if err := report.WriteJUnit(suiteFile.OutputDir, result); err != nil {
			return err
		}

		if copyFailure {
			copyFirstFailure(result)
		}

		fmt.Printf("%d scenarios, %d features\n", result.ScenarioCount(), result.FeatureCount())
		if result.IsFailed() {
			for _, msg := range result.ErrorStrings() {
				fmt.Println(" -", msg)
			}
			os.Exit(1)
		}
		return nil
	},
}

var mockPort int
var mockFeaturePath string
var mockWatch bool

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "serve a mock HTTP server backed by a feature file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if mockFeaturePath == "" {
			return fmt.Errorf("mock: --feature is required")
		}
		loader := engine.NewFeatureLoader(model.NewParser(), ".", ".")
		features, errs := loader.LoadAll([]string{mockFeaturePath})
		for _, e := range errs {
			return e
		}

		disp, err := mock.NewDispatcher(features, engine.DefaultEngineFactory, nil, nil)
		if err != nil {
			return err
		}

		srv := mock.NewServer(mock.ServerConfig{Port: mockPort}, disp)
		actualPort, shutdown, err := srv.Start()
		if err != nil {
			return err
		}
		defer shutdown()
		fmt.Printf("mock listening on :%d\n", actualPort)

		if mockWatch {
			w, err := mock.NewWatcher([]string{mockFeaturePath}, mock.LoaderReload(loader, disp))
			if err != nil {
				return err
			}
			defer w.Close()
			go w.Run(cmd.Context())
		}

		<-cmd.Context().Done()
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "interactively create a suite config",
	RunE: func(cmd *cobra.Command, args []string) error {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		_, err = config.RunWizard(wd)
		return err
	},
}

var selfUpdateCmd = &cobra.Command{
	Use:   "self-update",
	Short: "update wingman to the latest release",
	RunE: func(cmd *cobra.Command, args []string) error {
		current, err := semver.Parse(strings.TrimPrefix(version, "v"))
		if err != nil {
			return fmt.Errorf("self-update: invalid running version %q: %w", version, err)
		}
		release, err := selfupdate.UpdateSelf(current, githubSlug)
		if err != nil {
			return fmt.Errorf("self-update: %w", err)
		}
		if release.Version.Equals(current) {
			fmt.Println("already running the latest version:", current)
		} else {
			fmt.Println("updated to", release.Version)
		}
		return nil
	},
}

func applyOverrides(f *config.SuiteFile) {
	if tagExpr != "" {
		f.Tags = tagExpr
	}
	if threads > 0 {
		f.Threads = threads
	}
	if outputDir != "" {
		f.OutputDir = outputDir
	}
}

func loadSuiteFeatures(f config.SuiteFile) ([]*model.Feature, []error) {
	loader := engine.NewFeatureLoader(model.NewParser(), ".", ".")
	var refs []string
	for _, p := range f.Paths {
		refs = append(refs, expandFeaturePaths(p)...)
	}
	return loader.LoadAll(refs)
}

// expandFeaturePaths resolves a config path entry into concrete .feature
// files: the path itself if it already names a file, or every .feature
// file found by walking it if it names a directory.
func expandFeaturePaths(p string) []string {
	info, err := os.Stat(p)
	if err != nil {
		return []string{p}
	}
	if !info.IsDir() {
		return []string{p}
	}
	var out []string
	_ = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".feature") {
			out = append(out, path)
		}
		return nil
	})
	return out
}

// copyFirstFailure copies the first failing scenario's repro curl command
// to the clipboard, a small convenience mirroring the teacher's CLI polish
// (SPEC_FULL.md "--copy-failure clipboard convenience").
func copyFirstFailure(result engine.SuiteResult) {
	for _, fr := range result.Features {
		for _, sc := range fr.Scenarios {
			if !sc.Failed() {
				continue
			}
			repro := fmt.Sprintf("# %s: %s\n# %s", fr.Feature.Identity, sc.Scenario.Name, sc.FailureMessage())
			if err := clipboard.WriteAll(repro); err != nil {
				fmt.Fprintf(os.Stderr, "warning: copy-failure: %v\n", err)
			}
			return
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
