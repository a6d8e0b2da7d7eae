package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dinhthangx01/facebook-bot-multi/internal/catalog"
	"github.com/dinhthangx01/facebook-bot-multi/internal/config"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run diagnostic checks on the configuration and page tables",
		Long: `Verifies that the config file, page table, intent table and page catalogs
load, and that every page has the credentials it needs. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("HeavenBot check v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed, failed, warned := 0, 0, 0

			cfg, err := loadConfig()
			if err != nil {
				printFail("Config", err.Error())
				return fmt.Errorf("config invalid")
			}
			printPass("Config", resolveConfigPath())
			passed++

			if cfg.Server.AppSecret == "" {
				printWarn("App secret", "not set, webhook signatures are not checked")
				warned++
			} else {
				printPass("App secret", "set")
				passed++
			}

			store, err := config.LoadStore(cfg.Tables.Tenants, cfg.Tables.Intents)
			if err != nil {
				printFail("Tables", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d warnings, %d failed\n", passed, warned, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			printPass("Intent table", fmt.Sprintf("%d rules", len(store.Rules())))
			passed++

			tenants := store.Tenants()
			if len(tenants) == 0 {
				printFail("Page table", "no pages in "+cfg.Tables.Tenants)
				failed++
			} else {
				printPass("Page table", fmt.Sprintf("%d pages from %s", len(tenants), cfg.Tables.Tenants))
				passed++
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			for _, t := range tenants {
				name := "Page " + t.ID
				var missing []string
				if t.AccessToken == "" {
					missing = append(missing, "token")
				}
				if t.GenerationKey == "" {
					missing = append(missing, "generation key")
				}
				if len(missing) > 0 {
					printFail(name, "missing "+strings.Join(missing, ", "))
					failed++
					continue
				}
				if t.StoreLink == "" {
					printWarn(name, "no store link, purchase questions get a placeholder reply")
					warned++
				} else {
					printPass(name, t.StoreLink)
					passed++
				}

				if t.CatalogRef == "" {
					continue
				}
				entries, err := catalog.Load(ctx, t.CatalogRef)
				switch {
				case err != nil:
					printWarn(name+" catalog", err.Error())
					warned++
				case len(entries) == 0:
					printWarn(name+" catalog", "empty")
					warned++
				default:
					printPass(name+" catalog", fmt.Sprintf("%d entries", len(entries)))
					passed++
				}
			}

			if err := checkPort(cfg.Server.Host, cfg.Server.Port); err != nil {
				printWarn("Listen port", fmt.Sprintf("port %d may be in use: %v", cfg.Server.Port, err))
				warned++
			} else {
				printPass("Listen port", fmt.Sprintf(":%d available", cfg.Server.Port))
				passed++
			}

			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func tenantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tenants",
		Short: "List the configured pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := config.LoadStore(cfg.Tables.Tenants, cfg.Tables.Intents)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PAGE ID\tNAME\tTOKEN\tGEN KEY\tSTORE\tCATALOG")
			for _, t := range store.Tenants() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.Name, yesNo(t.AccessToken != ""), yesNo(t.GenerationKey != ""),
					orDash(t.StoreLink), orDash(t.CatalogRef))
			}
			return tw.Flush()
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
