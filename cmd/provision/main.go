// Command provision prepares custody material and fills the wallet pool.
//
//	provision derive --from 0 --count 100   # HD addresses into the pool
//	provision import                        # sealed custody.keys into the pool
//	provision seal --key <hex>              # print an address:ciphertext entry
//	provision gen-key                       # print a fresh aes.key
//	provision hash-password --password ...  # print an operator password_hash
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"fiat-token-bridge/config"
	"fiat-token-bridge/internal/adapter/custody"
	"fiat-token-bridge/internal/adapter/storage"
	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/service"
	"fiat-token-bridge/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

const usage = `usage: provision <derive|import|seal|gen-key|hash-password> [flags]`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cmd, args := args[0], args[1:]

	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("FTB_CONFIG"), "config file")

	switch cmd {
	case "derive":
		from := fs.Uint32("from", 0, "first derivation index")
		count := fs.Uint32("count", 10, "number of addresses")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withPool(ctx, *configPath, func(cfg *config.Config, pool *service.WalletPool) error {
			ks, err := custody.NewHDKeyStore(cfg.Custody.Mnemonic, cfg.Custody.Passphrase, cfg.Custody.ScanLimit)
			if err != nil {
				return err
			}
			wallets, err := ks.Wallets(*from, *count)
			if err != nil {
				return err
			}
			return provision(ctx, out, pool, wallets)
		})

	case "import":
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withPool(ctx, *configPath, func(cfg *config.Config, pool *service.WalletPool) error {
			enc, err := service.NewAESEncryptionService(cfg.AES.Key)
			if err != nil {
				return err
			}
			ks, err := custody.NewSealedKeyStore(cfg.Custody.Keys, enc)
			if err != nil {
				return err
			}
			return provision(ctx, out, pool, sealedWallets(ks.Addresses()))
		})

	case "seal":
		key := fs.String("key", "", "hex private key")
		if err := fs.Parse(args); err != nil {
			return err
		}
		cfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		enc, err := service.NewAESEncryptionService(cfg.AES.Key)
		if err != nil {
			return err
		}
		entry, err := custody.Seal(enc, *key)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, entry)
		return err

	case "gen-key":
		if err := fs.Parse(args); err != nil {
			return err
		}
		key, err := service.GenerateAESKey()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, key)
		return err

	case "hash-password":
		password := fs.String("password", "", "operator password")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if len(*password) < 12 {
			return errors.New("password must be at least 12 characters")
		}
		hash, err := service.NewArgon2HashService().Hash(*password)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, hash)
		return err
	}
	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}

func withPool(ctx context.Context, configPath string, fn func(*config.Config, *service.WalletPool) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	st, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(cfg, service.NewWalletPool(st.Pool, nil, log.With().Str("cmd", "provision").Logger()))
}

func provision(ctx context.Context, out io.Writer, pool *service.WalletPool, wallets []domain.PoolWallet) error {
	added, err := pool.Provision(ctx, wallets)
	if err != nil {
		return err
	}
	available, err := pool.Available(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "added %d of %d wallets; %d available\n", added, len(wallets), available)
	return err
}

func sealedWallets(addrs []common.Address) []domain.PoolWallet {
	out := make([]domain.PoolWallet, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, domain.PoolWallet{Address: a.Hex()})
	}
	return out
}
