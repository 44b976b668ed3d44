package cmd

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lehigh-university-libraries/sketchguess/internal/analysis"
	"github.com/lehigh-university-libraries/sketchguess/internal/discovery"
	"github.com/lehigh-university-libraries/sketchguess/internal/handlers"
	"github.com/lehigh-university-libraries/sketchguess/internal/raster"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string
	var advertise bool
	var scale float64
	var background string
	var settings analysis.Settings

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start web server for the drawing canvas",
		Long: `Starts the drawing canvas web interface on the specified port.

Draw with the pen or eraser, then press the analyze button to ask the vision
model what the drawing shows. Only one analysis per canvas runs at a time.`,
		Example: `  # Start server on default port 8888
  sketchguess serve

  # Start server on custom port and announce it on the local network
  sketchguess serve --port 3000 --advertise

  # Use OpenAI instead of a local Ollama
  sketchguess serve --provider openai --model gpt-4o`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var bg color.Color
			if background != "" {
				c, err := raster.ParseHexColor(background)
				if err != nil {
					return fmt.Errorf("invalid --background: %w", err)
				}
				bg = c
			}

			analyzer, err := analysis.Build(settings)
			if err != nil {
				return err
			}

			handler := handlers.New(handlers.Options{
				Analyzer:           analyzer,
				ExportScale:        scale,
				AnalysisBackground: bg,
			})

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/boards", handler.HandleBoards)
			mux.HandleFunc("/api/boards/", handler.HandleBoardDetail)
			mux.HandleFunc("/", handler.HandleStatic)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			if advertise {
				p, err := strconv.Atoi(port)
				if err != nil {
					return fmt.Errorf("invalid port %q: %w", port, err)
				}
				mdnsServer, err := discovery.Advertise(p)
				if err != nil {
					slog.Warn("Unable to advertise on the local network", "err", err)
				} else {
					defer mdnsServer.Shutdown() //nolint:errcheck
					slog.Info("Advertising on the local network", "service", discovery.ServiceType, "url", "http://"+discovery.OutgoingIP()+addr)
				}
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Sketchguess interface available",
					"addr", addr,
					"url", "http://localhost"+addr,
					"provider", analyzer.ProviderName(),
					"model", analyzer.Model())
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", envOr("PORT", "8888"), "Port to listen on")
	cmd.Flags().BoolVar(&advertise, "advertise", false, "Announce the server on the local network via mDNS")
	cmd.Flags().Float64Var(&scale, "scale", 2, "Pixel density of snapshots sent for analysis")
	cmd.Flags().StringVar(&background, "background", "#ffffff", "Background color of snapshots sent for analysis (empty for transparent)")
	cmd.Flags().StringVar(&settings.Provider, "provider", "", "Vision provider (ollama, openai or gemini)")
	cmd.Flags().StringVar(&settings.Model, "model", "", "Model name (defaults to the provider's default)")
	cmd.Flags().DurationVar(&settings.Timeout, "timeout", 2*time.Minute, "Analysis request timeout")
	cmd.Flags().IntVar(&settings.MaxSide, "max-side", 0, "Downscale snapshots so neither side exceeds this many pixels (0 disables)")

	return cmd
}
