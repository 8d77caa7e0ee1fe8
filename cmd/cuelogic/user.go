package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/cuelogic-core/internal/auth"
)

// userPasswordEnv supplies the password of "user add" and "user passwd"
// when --password is not given.
const userPasswordEnv = "CUELOGIC_USER_PASSWORD"

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage operator accounts in the SQLite store",
	}

	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an operator account",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserAdd,
	}
	add.Flags().String("role", string(auth.RoleOperator), "viewer, operator or admin")
	add.Flags().String("password", "", "password (default $"+userPasswordEnv+")")

	passwd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Replace the password of an account",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserPasswd,
	}
	passwd.Flags().String("password", "", "new password (default $"+userPasswordEnv+")")

	list := &cobra.Command{
		Use:   "list",
		Short: "List operator accounts",
		Args:  cobra.NoArgs,
		RunE:  runUserList,
	}

	cmd.AddCommand(add, passwd, list)
	return cmd
}

// userService opens the store and returns a service that can manage
// accounts. It cannot issue tokens.
func userService(cmd *cobra.Command) (*auth.Service, func() error, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	st, err := openStorage(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	if st.users == nil {
		st.close() //nolint:errcheck // Already failing
		return nil, nil, errNoUserStore
	}
	svc, err := auth.NewService(st.users, nil, auth.DefaultHasher, nil)
	if err != nil {
		st.close() //nolint:errcheck // Already failing
		return nil, nil, err
	}
	return svc, st.close, nil
}

func passwordFlag(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv(userPasswordEnv)
	}
	if password == "" {
		return "", fmt.Errorf("a password is required: use --password or $%s", userPasswordEnv)
	}
	return password, nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	password, err := passwordFlag(cmd)
	if err != nil {
		return err
	}
	role, _ := cmd.Flags().GetString("role")

	svc, closeStore, err := userService(cmd)
	if err != nil {
		return err
	}
	defer closeStore() //nolint:errcheck // Writes are committed

	user, err := svc.CreateUser(cmd.Context(), args[0], password, auth.Role(role))
	if err != nil {
		return fmt.Errorf("creating user %q: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s (%s)\n", user.Role, user.Username, user.ID)
	return nil
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
	password, err := passwordFlag(cmd)
	if err != nil {
		return err
	}
	svc, closeStore, err := userService(cmd)
	if err != nil {
		return err
	}
	defer closeStore() //nolint:errcheck // Writes are committed

	user, err := svc.Users().GetByUsername(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("looking up user %q: %w", args[0], err)
	}
	if err := svc.SetPassword(cmd.Context(), user.ID, password); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "password of %s changed\n", user.Username)
	return nil
}

func runUserList(cmd *cobra.Command, _ []string) error {
	svc, closeStore, err := userService(cmd)
	if err != nil {
		return err
	}
	defer closeStore() //nolint:errcheck // Read-only use

	users, err := svc.Users().List(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tROLE\tACTIVE\tID")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", u.Username, u.Role, u.IsActive, u.ID)
	}
	return w.Flush()
}
