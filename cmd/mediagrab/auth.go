package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mediagrab/pkg/auth"
	"mediagrab/pkg/extractor"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage platform session cookies",
	Long: `Manage stored platform session cookies.

Cookies are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (MEDIAGRAB_COOKIE, read-only)

Never share your cookies or config files!`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login [platform]",
	Short: "Store a platform's session cookie securely",
	Long: `Store a platform's session cookie in the system keychain or an
encrypted file.

To get the cookie header:
1. Log into the platform in your browser
2. Open Developer Tools (F12) and go to the Network tab
3. Reload, pick any request to the site and copy the Cookie header`,
	Example: `  mediagrab auth login x
  mediagrab auth login justforfans`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:     "logout [platform]",
	Short:   "Remove a platform's stored cookie",
	Args:    cobra.ExactArgs(1),
	Example: `  mediagrab auth logout x`,
	RunE:    runAuthLogout,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored platform accounts",
	RunE:  runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authListCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	var platform string
	if len(args) > 0 {
		platform = args[0]
	} else {
		fmt.Printf("Platform (%s): ", strings.Join(extractor.Platforms(), ", "))
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		platform = strings.TrimSpace(line)
	}
	if platform == "" {
		return fmt.Errorf("a platform is required")
	}

	fmt.Print("Cookie header (input hidden): ")
	cookieBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read cookie: %w", err)
	}
	cookie := strings.TrimSpace(string(cookieBytes))
	if cookie == "" {
		return fmt.Errorf("a cookie header is required")
	}

	fmt.Print("User agent (optional, Enter for default): ")
	userAgent, err := reader.ReadString('\n')
	if err != nil {
		return err
	}

	account := &auth.Account{
		Platform:     platform,
		CookieHeader: cookie,
		UserAgent:    strings.TrimSpace(userAgent),
	}
	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	fmt.Printf("Stored cookie for %s\n", platform)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed cookie for %s\n", args[0])
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No stored accounts.")
		return nil
	}

	for _, account := range accounts {
		masked := auth.SanitizeAccount(account)
		fmt.Printf("%-14s %s (modified %s)\n",
			masked.Platform, masked.CookieHeader, masked.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}
