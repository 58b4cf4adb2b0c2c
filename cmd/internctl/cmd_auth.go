package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/intern-connect/pkg/schema"
	"github.com/celerix-dev/intern-connect/pkg/sdk"
)

var (
	loginPassword string
	loginRemember bool

	regUSN        string
	regName       string
	regPhone      string
	regPassword   string
	regRole       string
	regDepartment string
)

// loginCmd authenticates and stores the session on this device
var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in and store the session",
	Long: `Log in with email and password.

The password is read from --password or, when omitted, from the first line of
standard input. Accounts still awaiting approval are refused with their
registration status.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and clear local credentials",
	RunE:  runLogout,
}

// whoamiCmd re-validates the stored session against the server
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in intern",
	RunE:  runWhoami,
}

var registerCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Register a new intern account",
	Long: `Register a new account. New accounts start PENDING until an administrator
approves them; use "internctl status <email>" to follow up.`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

var statusCmd = &cobra.Command{
	Use:   "status <email>",
	Short: "Check the approval status of a registration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKit()
		if err != nil {
			return err
		}
		p, err := k.Session.CheckPendingStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), p)
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (read from stdin when empty)")
	loginCmd.Flags().BoolVar(&loginRemember, "remember", false, "Ask the server for a long-lived session")

	registerCmd.Flags().StringVar(&regName, "name", "", "Full name (required)")
	registerCmd.Flags().StringVar(&regPassword, "password", "", "Password (read from stdin when empty)")
	registerCmd.Flags().StringVar(&regUSN, "usn", "", "University serial number")
	registerCmd.Flags().StringVar(&regPhone, "phone", "", "Phone number")
	registerCmd.Flags().StringVar(&regRole, "role", "intern", "Role")
	registerCmd.Flags().StringVar(&regDepartment, "department", "", "Department")
	registerCmd.MarkFlagRequired("name")
}

// readPassword returns flagVal, or the first line of the command's stdin.
func readPassword(cmd *cobra.Command, flagVal string) (string, error) {
	if flagVal != "" {
		return flagVal, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("no password given: %w", err)
		}
		return "", fmt.Errorf("no password given")
	}
	return line, nil
}

// readLines reads n non-empty lines from the command's stdin.
func readLines(cmd *cobra.Command, n int) ([]string, error) {
	sc := bufio.NewScanner(cmd.InOrStdin())
	lines := make([]string, 0, n)
	for len(lines) < n && sc.Scan() {
		if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(lines) < n {
		return nil, fmt.Errorf("expected %d lines on stdin, got %d", n, len(lines))
	}
	return lines, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd, loginPassword)
	if err != nil {
		return err
	}
	k, err := openKit()
	if err != nil {
		return err
	}

	res := k.Session.Login(cmd.Context(), args[0], password, loginRemember)
	if !res.Success {
		if res.Status != "" {
			return fmt.Errorf("login failed (%s): %s", res.Status, res.Error)
		}
		return fmt.Errorf("login failed: %s", res.Error)
	}
	return render(cmd.OutOrStdout(), res.User)
}

func runLogout(cmd *cobra.Command, args []string) error {
	k, err := openKit()
	if err != nil {
		return err
	}
	if err := k.Session.Logout(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	k, err := openKit()
	if err != nil {
		return err
	}
	snap := k.Session.Bootstrap(cmd.Context())
	if !snap.IsAuthenticated {
		return errNotLoggedIn
	}
	return render(cmd.OutOrStdout(), snapshotDoc(snap))
}

// snapshotDoc is the printable form of a session snapshot.
func snapshotDoc(s sdk.Snapshot) map[string]any {
	return map[string]any{
		"state":           s.State.String(),
		"isAuthenticated": s.IsAuthenticated,
		"user":            s.User,
	}
}

func runRegister(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd, regPassword)
	if err != nil {
		return err
	}
	k, err := openKit()
	if err != nil {
		return err
	}

	res := k.Session.Register(cmd.Context(), schema.RegisterRequest{
		USN:        regUSN,
		FullName:   regName,
		Phone:      regPhone,
		Email:      args[0],
		Password:   password,
		Role:       regRole,
		Department: regDepartment,
	})
	if !res.Success {
		return fmt.Errorf("registration failed: %s", res.Error)
	}
	return render(cmd.OutOrStdout(), res)
}
