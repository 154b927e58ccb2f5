package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/prwatch/internal/notify"
)

var whatsappCmd = &cobra.Command{
	Use:   "whatsapp",
	Short: "Manage the WhatsApp linked device",
}

// whatsappLoginCmd pairs the device store with a phone.
var whatsappLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Link prwatch to a WhatsApp account by scanning a QR code",
	Long: `Print a pairing QR code in the terminal. Scan it from WhatsApp under
Settings > Linked Devices. The session is kept in WHATSAPP_STORE_DSN and
reused by later scans.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wa, err := notify.NewWhatsApp(cmd.Context(), notify.WhatsAppConfig{
			StoreDSN:   cfg.WhatsApp.StoreDSN,
			DeviceName: cfg.WhatsApp.DeviceName,
		})
		if err != nil {
			return err
		}
		defer wa.Close()

		if err := wa.Login(cmd.Context(), cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("failed to link whatsapp device: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "WhatsApp device linked")
		return nil
	},
}

func init() {
	whatsappCmd.AddCommand(whatsappLoginCmd)
}
