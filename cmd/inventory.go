package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/app"
	"github.com/giantswarm/agentcatalog/internal/inventory"
	"github.com/giantswarm/agentcatalog/internal/selector"
	"github.com/giantswarm/agentcatalog/pkg/logging"
)

var (
	inventoryTenant    string
	inventoryLabels    []string
	inventoryAgent     string
	inventoryMethod    string
	inventoryServeAddr string
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Work with the resource inventory",
	Long: `The file inventory keeps one YAML document per resource under
<inventory.path>/<tenant>/<resource>.yaml. A running server watches the
tree, so put and rm take effect on bindings without further steps.

Examples:
  agentcatalog inventory put --tenant acme web-1 --label os=linux --agent ea-7
  agentcatalog inventory find --tenant acme --label os=linux
  agentcatalog inventory serve --addr 127.0.0.1:8090`,
}

// fileInventory returns the file inventory or a validation error when the
// configured inventory is remote.
func fileInventory(a *app.Application) (*inventory.FileInventory, error) {
	if fi := a.Services().FileInventory; fi != nil {
		return fi, nil
	}
	return nil, api.NewValidationError("inventory.mode", "this command needs the file inventory")
}

var inventoryPutCmd = &cobra.Command{
	Use:   "put <resource-id>",
	Short: "Create or replace a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		labels, err := parseLabels("labels", inventoryLabels)
		if err != nil {
			return err
		}
		return withApplication(func(a *app.Application) error {
			fi, err := fileInventory(a)
			if err != nil {
				return err
			}
			if err := fi.Put(api.Resource{
				TenantID:         inventoryTenant,
				ResourceID:       args[0],
				Labels:           labels,
				ExecutionAgentID: inventoryAgent,
			}); err != nil {
				return err
			}
			successf(cmd, "Resource %s written", api.ResourceKey(inventoryTenant, args[0]))
			return nil
		})
	},
}

var inventoryGetCmd = &cobra.Command{
	Use:   "get <resource-id>",
	Short: "Show a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}
		return withApplication(func(a *app.Application) error {
			r, err := a.Services().Inventory.GetResource(cmd.Context(), inventoryTenant, args[0])
			if err != nil {
				return err
			}
			return f.Resource(r)
		})
	},
}

var inventoryFindCmd = &cobra.Command{
	Use:   "find",
	Short: "List the resources matching a label selector",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, err := parseLabels("labelSelector", inventoryLabels)
		if err != nil {
			return err
		}
		method, err := selector.ParseMethod(inventoryMethod)
		if err != nil {
			return err
		}
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}
		return withApplication(func(a *app.Application) error {
			ids, err := a.Services().Inventory.FindResourcesMatchingSelector(cmd.Context(), inventoryTenant, sel, method)
			if err != nil {
				return err
			}
			return f.Resources(inventoryTenant, ids)
		})
	},
}

var inventoryRmCmd = &cobra.Command{
	Use:     "rm <resource-id>",
	Aliases: []string{"delete"},
	Short:   "Remove a resource",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(a *app.Application) error {
			fi, err := fileInventory(a)
			if err != nil {
				return err
			}
			if err := fi.Remove(inventoryTenant, args[0]); err != nil {
				return err
			}
			successf(cmd, "Resource %s removed", api.ResourceKey(inventoryTenant, args[0]))
			return nil
		})
	},
}

var inventoryServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the file inventory over HTTP",
	Long: `Exposes the file inventory through the HTTP API that inventory.mode: http
consumes, so several reconcilers can share one inventory tree.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.NewApplication(app.NewConfig(rootDebug, rootConfigPath))
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		fi, err := fileInventory(application)
		if err != nil {
			return err
		}

		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
		defer stop()

		ln, err := net.Listen("tcp", inventoryServeAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", inventoryServeAddr, err)
		}
		srv := &http.Server{
			Handler:           inventory.NewHandler(fi),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logging.Info("InventoryServer", "Serving %s on %s", fi.Root(), ln.Addr())

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Serve(ln) }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inventoryCmd)
	inventoryCmd.AddCommand(inventoryPutCmd, inventoryGetCmd, inventoryFindCmd, inventoryRmCmd, inventoryServeCmd)

	for _, c := range []*cobra.Command{inventoryPutCmd, inventoryGetCmd, inventoryFindCmd, inventoryRmCmd} {
		c.Flags().StringVar(&inventoryTenant, "tenant", "", "Tenant ID")
		_ = c.MarkFlagRequired("tenant")
	}
	inventoryPutCmd.Flags().StringSliceVar(&inventoryLabels, "label", nil, "Resource label key=value (repeatable)")
	inventoryPutCmd.Flags().StringVar(&inventoryAgent, "agent", "", "Execution agent ID the resource is attached to")
	inventoryFindCmd.Flags().StringSliceVar(&inventoryLabels, "label", nil, "Selector label key=value (repeatable)")
	inventoryFindCmd.Flags().StringVar(&inventoryMethod, "method", "AND", "Selector method: AND or OR")
	inventoryServeCmd.Flags().StringVar(&inventoryServeAddr, "addr", "127.0.0.1:8090", "Listen address")
}
