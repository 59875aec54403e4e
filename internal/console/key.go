package console

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/onyx-go/dispatch/internal/config"
)

// cipherValue is a pflag.Value restricted to the supported ciphers
type cipherValue string

var _ pflag.Value = (*cipherValue)(nil)

func (v *cipherValue) String() string { return string(*v) }

func (v *cipherValue) Type() string { return "cipher" }

func (v *cipherValue) Set(s string) error {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, name := range config.Ciphers() {
		if name == s {
			*v = cipherValue(s)
			return nil
		}
	}
	return fmt.Errorf("must be one of %s", strings.Join(config.Ciphers(), ", "))
}

func (c *Console) keyGenerateCommand() *cobra.Command {
	var (
		cipher cipherValue
		show   bool
	)

	cmd := &cobra.Command{
		Use:   "key:generate",
		Short: "Generate the application key",
		Long: `Generate a random APP_KEY sized for the configured cipher and write it
to the dotenv file. The configuration is read without validation, so this
works before a key exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := string(cipher)
			if name == "" {
				cfg, err := config.Load(config.Options{
					File:           c.configFile,
					EnvFile:        c.envFile,
					SkipValidation: true,
				})
				if err != nil {
					return err
				}
				name = cfg.GetString("app.cipher")
			}

			key, err := config.GenerateKey(name)
			if err != nil {
				return err
			}
			if show {
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			}

			if err := config.WriteEnv(c.envFile, config.EnvName("app.key"), key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Application key set in %s\n", c.envFile)
			return nil
		},
	}

	cmd.Flags().Var(&cipher, "cipher", "cipher to size the key for (default: app.cipher)")
	cmd.Flags().BoolVar(&show, "show", false, "print the key instead of writing it")
	return cmd
}
