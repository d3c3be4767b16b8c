package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haytac/neighbourhood-emoji/internal/emojicodec"
)

// inputText joins args, or reads stdin when there are none.
func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimRight(string(b), "\n"), nil
}

// NewDecodeCmd creates the decode command.
func NewDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [text...]",
		Short: "Replace {{EMOJI:<CODE>}} tokens with emoji glyphs",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), emojicodec.Decode(text))
			return nil
		},
	}
}

// NewEncodeCmd creates the encode command.
func NewEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode [text...]",
		Short: "Replace emoji glyphs and :alias: shortcodes with tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), emojicodec.EncodeShortcodes(emojicodec.Encode(text)))
			return nil
		},
	}
}

// NewInspectCmd creates the inspect command.
func NewInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [text...]",
		Short: "Report the emoji tokens found in text",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Contains emojis: %t\n", emojicodec.ContainsEmojis(text))
			fmt.Fprintf(out, "Count: %d\n", emojicodec.CountEmojis(text))
			for i, code := range emojicodec.ExtractEmojiCodes(text) {
				known := ""
				if !emojicodec.Known(code) {
					known = " (fallback)"
				}
				fmt.Fprintf(out, "%d. %s %s%s\n", i+1, code, emojicodec.Glyph(code), known)
			}
			return nil
		},
	}
}

// NewGlyphCmd creates the glyph command.
func NewGlyphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "glyph <code>",
		Short: "Show the glyph a code resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := args[0]
			status := "known"
			if !emojicodec.Known(code) {
				status = "unknown, fallback"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", code, emojicodec.Glyph(code), status)
			return nil
		},
	}
}
