// Command trustedlogin levanta el servicio de acceso de soporte y expone una
// CLI administrativa sobre su API.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/trustedlogin/internal/app"
	"github.com/dropDatabas3/trustedlogin/internal/config"
	httpserver "github.com/dropDatabas3/trustedlogin/internal/http"
	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
	"github.com/dropDatabas3/trustedlogin/internal/security/encryption"
	"github.com/dropDatabas3/trustedlogin/internal/util/atomicwrite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "trustedlogin",
		Short:         "Acceso de soporte seguro para vendors",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Archivo .env a cargar (si existe)")

	root.AddCommand(newServeCmd(), newKeysCmd())
	for _, c := range newAdminCmds() {
		root.AddCommand(c)
	}
	return root
}

// loadConfig lee el YAML si se indicó uno; si no, sólo variables de entorno.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FromEnv()
}

func newServeCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP (API admin + login público)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgPath == "" {
				// después de godotenv: el .env puede definirlo
				cfgPath = os.Getenv("TL_CONFIG")
			}
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			s := cfg.Settings()
			logger.Init(logger.Config{
				Env:       s.Log.Env,
				Level:     s.Log.Level,
				Namespace: cfg.Namespace(),
				Version:   app.Version,
			})
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, app.Options{})
			if err != nil {
				logger.L().Error("wiring failed", logger.Err(err))
				return err
			}
			defer a.Close()

			return httpserver.Start(ctx, httpserver.NewServer(s.Server.Addr, a.Handler))
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Ruta al YAML de configuración (env TL_CONFIG)")
	return cmd
}

func newKeysCmd() *cobra.Command {
	var write string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Genera un keypair NaCl box y un nonce (hex)",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := encryption.GenerateKeypair()
			if err != nil {
				return err
			}
			nonce, err := encryption.Nonce()
			if err != nil {
				return err
			}
			body := fmt.Sprintf("public_key=%s\nprivate_key=%s\nnonce=%s\n", pub, priv, hex.EncodeToString(nonce))

			out := cmd.OutOrStdout()
			if write == "" {
				_, err = io.WriteString(out, body)
				return err
			}
			if err := atomicwrite.WriteFile(write, []byte(body), 0o600); err != nil {
				return fmt.Errorf("keys: %w", err)
			}
			// la privada queda sólo en el archivo
			fmt.Fprintf(out, "public_key=%s\nwritten=%s\n", pub, write)
			return nil
		},
	}
	cmd.Flags().StringVar(&write, "write", "", "escribe las claves en este archivo (0600) en vez de stdout")
	return cmd
}
