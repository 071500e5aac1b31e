package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmerrifield20/recordchain/internal/chain"
	"github.com/jmerrifield20/recordchain/internal/digest"
	"github.com/jmerrifield20/recordchain/internal/identity"
	"github.com/jmerrifield20/recordchain/internal/store/file"
	"github.com/jmerrifield20/recordchain/pkg/client"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	token     string
	cfgFile   string
	timeout   time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "recordchain command-line client",
	Long: `ledgerctl records file digests on a recordchain server and checks the
integrity of the resulting hash chain, either through the server or offline
against a snapshot file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".recordchain"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("RECORDCHAIN")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:5000"
		}
		if token == "" {
			token = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.recordchain/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "ledgerd base URL (default http://localhost:5000)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "upload bearer token (or RECORDCHAIN_TOKEN)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() (*client.Client, error) {
	opts := []client.Option{client.WithTimeout(timeout)}
	if token != "" {
		opts = append(opts, client.WithBearerToken(token))
	}
	return client.New(serverURL, opts...)
}

// ── hash ─────────────────────────────────────────────────────────────────────

var hashDigest string

var hashCmd = &cobra.Command{
	Use:   "hash <file> [file] ...",
	Short: "Print the digest ledgerd would record for each file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		alg, err := digest.Lookup(hashDigest)
		if err != nil {
			return err
		}
		for _, path := range args {
			sum, err := hashFile(alg, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, path)
		}
		return nil
	},
}

func init() {
	hashCmd.Flags().StringVar(&hashDigest, "digest", "sha256", "digest algorithm: sha256, sha3-256 or blake2b-256")
}

func hashFile(alg digest.Algorithm, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum, _, err := alg.SumReader(f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}

// ── upload ───────────────────────────────────────────────────────────────────

var uploadCmd = &cobra.Command{
	Use:   "upload <file> [file] ...",
	Short: "Upload files and record their digests in the chain",
	Long: `Upload sends each file to the server, which hashes it and appends the
digest as a new block. Files are sent one at a time in argument order so block
indices follow the command line.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, path := range args {
			res, err := uploadFile(cmd.Context(), c, path)
			if err != nil {
				return fmt.Errorf("upload %s: %w", path, err)
			}
			fmt.Fprintf(out, "block %d  %s  %s\n", res.Block.Index, res.Block.Hash, filepath.Base(path))
		}
		return nil
	},
}

func uploadFile(ctx context.Context, c *client.Client, path string) (*client.UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.Upload(ctx, filepath.Base(path), f)
}

// ── chain ────────────────────────────────────────────────────────────────────

var chainFormat string

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Print every block in the chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		blocks, err := c.Chain(cmd.Context())
		if err != nil {
			return err
		}
		return printChain(cmd.OutOrStdout(), blocks, chainFormat)
	},
}

func init() {
	chainCmd.Flags().StringVar(&chainFormat, "format", "text", "output format: text or json")
}

func printChain(w io.Writer, blocks []client.Block, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(blocks)
	case "text":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "INDEX\tTIME\tFILE HASH\tHASH")
		for _, b := range blocks {
			ts := chain.Timestamp(b.Timestamp).Time().UTC().Format(time.RFC3339)
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", b.Index, ts, b.FileHash, b.Hash)
		}
		return tw.Flush()
	}
	return fmt.Errorf("unknown format %q", format)
}

// ── verify ───────────────────────────────────────────────────────────────────

var (
	verifySnapshot string
	verifyDigest   string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check chain integrity on the server or in a snapshot file",
	Long: `Verify asks the server to re-walk its chain. With --snapshot it instead
reads a blockchain.json snapshot and verifies it locally, without a server:

  ledgerctl verify --snapshot /var/lib/recordchain/blockchain.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if verifySnapshot != "" {
			return verifySnapshotFile(out, verifySnapshot, verifyDigest)
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		report, err := c.Verify(cmd.Context())
		if err != nil {
			return err
		}
		if !report.Valid {
			return fmt.Errorf("chain is invalid: %s", report.Error)
		}
		fmt.Fprintln(out, "chain is valid")
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifySnapshot, "snapshot", "", "verify this snapshot file offline")
	verifyCmd.Flags().StringVar(&verifyDigest, "digest", "sha256", "digest algorithm the snapshot was written with")
}

func verifySnapshotFile(w io.Writer, path, digestName string) error {
	alg, err := digest.Lookup(digestName)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	records, err := file.Decode(data)
	if err != nil {
		return err
	}
	if err := chain.Verify(alg, records); err != nil {
		var ie *chain.IntegrityError
		if errors.As(err, &ie) && ie.Index >= 0 {
			return fmt.Errorf("%s: first bad block is %d: %w", path, ie.Index, err)
		}
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintf(w, "%s: %d blocks, chain is valid, root %s\n", path, len(records), records[len(records)-1].Hash)
	return nil
}

// ── token ────────────────────────────────────────────────────────────────────

var (
	tokenSubject string
	tokenScopes  []string
	tokenTTL     time.Duration
	tokenIssuer  string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an upload token signed with the server's secret",
	Long: `Token signs an HS256 upload token with AUTH_JWT_SECRET (or auth.jwt_secret
from the config file), the same secret ledgerd verifies against.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := os.Getenv("AUTH_JWT_SECRET")
		if secret == "" {
			secret = viper.GetString("auth.jwt_secret")
		}
		if secret == "" {
			return errors.New("no signing secret: set AUTH_JWT_SECRET or auth.jwt_secret")
		}
		if tokenSubject == "" {
			return errors.New("--subject is required")
		}

		issuer, err := identity.NewTokenIssuer([]byte(secret), tokenIssuer, tokenTTL)
		if err != nil {
			return err
		}
		tok, err := issuer.Issue(tokenSubject, tokenScopes)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "uploader identity recorded in server logs")
	tokenCmd.Flags().StringSliceVar(&tokenScopes, "scope", []string{identity.ScopeUpload}, "scopes to grant")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	tokenCmd.Flags().StringVar(&tokenIssuer, "issuer", "recordchain", "iss claim; must match the server's auth.issuer")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ledgerctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ledgerctl %s (recordchain)\n", version)
	},
}
