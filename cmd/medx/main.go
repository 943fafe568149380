package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"medical-record-exchange/internal/api/handlers"
	"medical-record-exchange/internal/api/routes"
	"medical-record-exchange/internal/codec"
	"medical-record-exchange/internal/config"
	"medical-record-exchange/internal/domain/dtos"
	"medical-record-exchange/internal/reader"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath string
	envFile    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "medx",
		Short:        "Proximity exchange of patient records over QR and NFC",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigFile, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", config.DefaultEnvFile, "Path to a .env file with MEDX_* overrides")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(payloadCmd())
	rootCmd.AddCommand(qrCmd())
	rootCmd.AddCommand(decodeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the local HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx)
		},
	}
}

func runServer(ctx context.Context) error {
	rt, err := newComponents(ctx, configPath, envFile)
	if err != nil {
		return err
	}
	logger := rt.logger

	v := validator.New()
	app := routes.NewApp()
	accessLog := logger.With().Str("component", "http").Logger()
	rc := routes.Config{
		App:             app,
		RecordHandler:   handlers.NewRecordHandler(rt.records, v, logger),
		ExchangeHandler: handlers.NewExchangeHandler(rt.exchange, v, logger),
		AccessLog:       accessLog,
	}
	rc.Setup()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", rt.cfg.HTTP.Address).Msg("http server listening")
		errCh <- app.Listen(rt.cfg.HTTP.Address)
	}()

	select {
	case err = <-errCh:
		logger.Error().Err(err).Msg("http server stopped")
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := app.ShutdownWithContext(shutdownCtx); serr != nil {
		logger.Warn().Err(serr).Msg("http shutdown")
	}
	if cerr := rt.Close(shutdownCtx); cerr != nil {
		logger.Warn().Err(cerr).Msg("close components")
	}
	return err
}

func scanCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan activation and print the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newComponents(ctx, configPath, envFile)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			events, unsubscribe := rt.exchange.Subscribe()
			defer unsubscribe()

			if err := rt.exchange.StartScan(ctx); err != nil {
				return err
			}

			timer := time.NewTimer(timeout)
			defer timer.Stop()
			select {
			case event, ok := <-events:
				if !ok {
					return errors.New("scan interrupted")
				}
				if event.Type == dtos.ScanEventError {
					return fmt.Errorf("scan failed: %s", event.Reason)
				}
				return printJSON(cmd.OutOrStdout(), event.Outcome)
			case <-timer.C:
				rt.exchange.CancelScan(ctx)
				return fmt.Errorf("no scan result within %s", timeout)
			case <-ctx.Done():
				rt.exchange.CancelScan(context.Background())
				return ctx.Err()
			}
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Give up when nothing is read within this time")
	return cmd
}

func payloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "payload <id>",
		Short: "Print the transfer payload of a stored record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newComponents(ctx, configPath, envFile)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			text, err := rt.exchange.ExportPayload(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
}

func qrCmd() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "qr <id> <out.png>",
		Short: "Render the transfer payload of a stored record as a QR code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newComponents(ctx, configPath, envFile)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			img, err := rt.exchange.ExportQR(ctx, args[0], size)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], img, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", args[1], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[1])
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", reader.DefaultQRSize, "Image width and height in pixels")
	return cmd
}

func decodeCmd() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "decode <file|->",
		Short: "Decode a transfer payload, optionally reconciling it into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if !save {
				record, err := codec.DecodeBytes(data)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), record)
			}

			ctx := cmd.Context()
			rt, err := newComponents(ctx, configPath, envFile)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			outcome, err := rt.exchange.SubmitPayload(ctx, string(data))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), outcome)
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Reconcile the decoded record into the store")
	return cmd
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(io.LimitReader(stdin, codec.MaxPayloadSize+1))
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
