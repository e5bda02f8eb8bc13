package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridocproj/veridoc/internal/api"
	"github.com/veridocproj/veridoc/internal/artifact"
	"github.com/veridocproj/veridoc/internal/calllog"
	"github.com/veridocproj/veridoc/internal/config"
	"github.com/veridocproj/veridoc/internal/extract"
	"github.com/veridocproj/veridoc/internal/home"
	"github.com/veridocproj/veridoc/internal/intake"
	"github.com/veridocproj/veridoc/internal/ocr"
	"github.com/veridocproj/veridoc/internal/providers"
	"github.com/veridocproj/veridoc/internal/raster"
	"github.com/veridocproj/veridoc/internal/registry"
	"github.com/veridocproj/veridoc/internal/verify"
)

var verifyProgram string

var verifyCmd = &cobra.Command{
	Use:   "verify <file>...",
	Short: "Verify documents locally, without a server",
	Long: `Run one verification call in-process.

The documents are rasterized, OCR'd, and the extracted fields are matched
against the student registry, using the providers and strategy from the
config file. All files belong to one applicant and are reconciled into a
single verdict.

A tessd provider needs a running tesseract-server; start one with
'veridoc ocrd start' or point base_url at an external deployment.

Examples:
  veridoc verify marksheet.pdf
  veridoc verify marksheet.pdf certificate.png -o json
  veridoc verify --program Graduate transcript.pdf resume.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Checklist gate before anything is rendered or OCR'd.
		if verifyProgram != "" {
			names := make([]string, len(args))
			for i, a := range args {
				names[i] = filepath.Base(a)
			}
			ok, missing, err := intake.Check(verifyProgram, names)
			if err != nil {
				return err
			}
			if !ok {
				return api.Output(verify.ChecklistFailure(verifyProgram, missing))
			}
		}

		docs := make([]artifact.Document, 0, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			docs = append(docs, artifact.New(filepath.Base(path), data))
		}

		h, err := getHome()
		if err != nil {
			return err
		}
		cm, err := getConfigManager(h)
		if err != nil {
			return err
		}
		conf := cm.Get()

		// Keep stdout clean for the verdict; warnings go to stderr.
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		}))

		registryPath := conf.Registry.Path
		if registryPath == "" {
			registryPath = h.DatabasePath()
		}
		students, err := registry.Open(registryPath)
		if err != nil {
			return fmt.Errorf("failed to open student registry: %w", err)
		}
		defer students.Close()

		calls, err := calllog.Open(h.DatabasePath())
		if err != nil {
			return fmt.Errorf("failed to open call log: %w", err)
		}
		defer calls.Close()

		recorder := calllog.NewRecorder(calls, logger)
		recorder.Start()
		defer recorder.Stop()

		engine, err := buildLocalEngine(h, conf, logger, recorder, students)
		if err != nil {
			return err
		}

		verdict := engine.Verify(ctx, docs)
		return api.Output(verdict)
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyProgram, "program", "", "Check files against this program's document checklist first")
	rootCmd.AddCommand(verifyCmd)
}

// buildLocalEngine assembles a verification engine from config, the same
// way the server does on start.
func buildLocalEngine(h *home.Dir, conf *config.Config, logger *slog.Logger, recorder *calllog.Recorder, students *registry.Store) (*verify.Engine, error) {
	provReg := providers.NewRegistry()
	provReg.SetLogger(logger)
	provReg.Reload(conf.ToProviderRegistryConfig())

	var provider providers.OCRProvider
	for _, name := range conf.Defaults.OCRProviders {
		p, err := provReg.GetOCR(name)
		if err == nil {
			provider = p
			break
		}
	}
	if provider == nil {
		return nil, fmt.Errorf("no enabled OCR provider among %v", conf.Defaults.OCRProviders)
	}

	extractor := ocr.New(ocr.Config{
		Provider:    provider,
		PageTimeout: time.Duration(conf.Defaults.PageTimeoutSeconds) * time.Second,
		Logger:      logger,
		Recorder:    recorder,
	})

	rasterizer := raster.New(raster.Config{
		ScratchDir: h.ScratchPath(),
		Logger:     logger,
	})

	var llmClient providers.LLMClient
	var model string
	if conf.Defaults.Strategy == extract.LLMStrategyName {
		name := conf.Defaults.LLMProvider
		client, err := provReg.GetLLM(name)
		if err != nil {
			return nil, fmt.Errorf("llm strategy needs provider %q: %w", name, err)
		}
		llmClient = client
		if pc, ok := conf.GetLLMProvider(name); ok {
			model = pc.Model
		}
	}

	strategy, err := extract.New(extract.Config{
		Strategy: conf.Defaults.Strategy,
		Client:   llmClient,
		Model:    model,
		Recorder: recorder,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	required, err := conf.RequiredFields()
	if err != nil {
		return nil, err
	}

	return verify.New(verify.Config{
		Rasterizer:    rasterizer,
		OCR:           extractor,
		Strategy:      strategy,
		Registry:      students,
		Required:      required,
		MatchRegistry: conf.Verification.MatchRegistry,
		Workers:       conf.Defaults.MaxWorkers,
		Logger:        logger,
	}), nil
}
