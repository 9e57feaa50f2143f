package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	req, err := http.NewRequest(method, strings.TrimRight(c.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-API-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(w io.Writer, status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Fprintln(w, string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Fprintln(w, strings.TrimSpace(string(body)))
	} else {
		fmt.Fprintf(w, "status=%d\n", status)
	}
}

// call ejecuta el request e imprime la respuesta. Un status fuera de okStatus
// es error del comando.
func (c *client) call(cmd *cobra.Command, method, path string, body []byte, okStatus ...int) error {
	status, resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	for _, s := range okStatus {
		if status == s {
			c.print(cmd.OutOrStdout(), status, resp)
			return nil
		}
	}
	c.print(cmd.ErrOrStderr(), status, resp)
	return fmt.Errorf("%s %s: status=%d", method, path, status)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// newAdminCmds arma los comandos que hablan con /admin. Los flags se leen en
// PreRunE, después de que godotenv cargó el .env.
func newAdminCmds() []*cobra.Command {
	cl := &client{HTTP: &http.Client{Timeout: 60 * time.Second}}
	var baseURL, apiKey, out string

	preRun := func(cmd *cobra.Command, args []string) error {
		cl.BaseURL = firstNonEmpty(baseURL, envOr("TL_ADMIN_URL", "http://localhost:8080"))
		cl.APIKey = firstNonEmpty(apiKey, envOr("TL_ADMIN_API_KEY", ""))
		cl.OutFormat = firstNonEmpty(out, envOr("TL_OUT", "text"))
		if cl.APIKey == "" {
			return fmt.Errorf("falta API key (flag --admin-api-key o env TL_ADMIN_API_KEY)")
		}
		return nil
	}
	withFlags := func(cmd *cobra.Command) *cobra.Command {
		cmd.Flags().StringVar(&baseURL, "admin-api-url", "", "URL base del servicio (env TL_ADMIN_URL)")
		cmd.Flags().StringVar(&apiKey, "admin-api-key", "", "API key admin (env TL_ADMIN_API_KEY)")
		cmd.Flags().StringVar(&out, "out", "", "Formato de salida: json|text (env TL_OUT)")
		cmd.PreRunE = preRun
		return cmd
	}

	var requester string
	grant := withFlags(&cobra.Command{
		Use:   "grant",
		Short: "Otorga acceso de soporte (POST /admin/access)",
		RunE: func(cmd *cobra.Command, args []string) error {
			requester = firstNonEmpty(requester, os.Getenv("TL_REQUESTER_ID"))
			if requester == "" {
				return fmt.Errorf("--requester es requerido")
			}
			b, _ := json.Marshal(map[string]string{"requester_id": requester})
			return cl.call(cmd, http.MethodPost, "/admin/access", b, http.StatusCreated)
		},
	})
	grant.Flags().StringVar(&requester, "requester", "", "ID del admin que otorga el acceso (env TL_REQUESTER_ID)")

	revoke := withFlags(&cobra.Command{
		Use:   "revoke <identifier|all>",
		Short: "Revoca un acceso o todos (DELETE /admin/access/{identifier})",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.call(cmd, http.MethodDelete, "/admin/access/"+url.PathEscape(args[0]), nil,
				http.StatusOK, http.StatusMultiStatus)
		},
	})

	list := withFlags(&cobra.Command{
		Use:   "list",
		Short: "Lista los accesos activos (GET /admin/access)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.call(cmd, http.MethodGet, "/admin/access", nil, http.StatusOK)
		},
	})

	accessKey := withFlags(&cobra.Command{
		Use:   "access-key",
		Short: "Muestra la access key del sitio (GET /admin/access-key)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.call(cmd, http.MethodGet, "/admin/access-key", nil, http.StatusOK)
		},
	})

	return []*cobra.Command{grant, revoke, list, accessKey}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
