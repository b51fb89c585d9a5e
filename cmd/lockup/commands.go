package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-distributor/pkg/app"
	"github.com/code-payments/token-distributor/pkg/lockup"
	"github.com/code-payments/token-distributor/pkg/solana"
	"github.com/code-payments/token-distributor/pkg/solana/token"
	"github.com/code-payments/token-distributor/pkg/solana/tokendistributor"
)

type environment struct {
	log    *logrus.Entry
	out    io.Writer
	rpc    solana.Client
	client *lockup.Client
	wallet *lockup.KeypairWallet
}

func newEnvironment(config app.BaseConfig, out io.Writer, withWallet bool) (*environment, error) {
	endpoint := solana.ResolveEndpoint(config.SolanaRPCEndpoint)

	rpc := solana.New(endpoint)
	client, err := lockup.NewClient(lockup.NewRPCNetwork(rpc, lockup.WithEnvConfigs()), lockup.WithEnvConfigs())
	if err != nil {
		return nil, err
	}

	env := &environment{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type":     "cmd/lockup",
			"endpoint": endpoint,
			"program":  base58.Encode(client.Program()),
		}),
		out:    out,
		rpc:    rpc,
		client: client,
	}

	if withWallet {
		path, err := expandHome(config.Keypair)
		if err != nil {
			return nil, err
		}

		raw, err := app.LoadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load keypair %s", config.Keypair)
		}

		env.wallet, err = lockup.ParseKeypairWallet(raw)
		if err != nil {
			return nil, err
		}
		env.log = env.log.WithField("wallet", base58.Encode(env.wallet.PublicKey()))
	}

	return env, nil
}

type commandFunc func(ctx context.Context, env *environment, fs *flag.FlagSet, args []string) error

func command(name, description string, withWallet bool, out io.Writer, run commandFunc) app.Command {
	return app.Command{
		Name:        name,
		Description: description,
		Run: func(ctx context.Context, config app.BaseConfig, args []string) error {
			fs := flag.NewFlagSet(name, flag.ContinueOnError)
			fs.SetOutput(out)

			env, err := newEnvironment(config, out, withWallet)
			if err != nil {
				return err
			}
			return run(ctx, env, fs, args)
		},
	}
}

func newCommands(out io.Writer) []app.Command {
	return []app.Command{
		command("create-schedule", "create a lockup schedule owned by the wallet", true, out, runCreateSchedule),
		command("lock", "lock tokens for a receiver under a schedule", true, out, runLock),
		command("redeem", "redeem unlocked tokens of a lockup held by the wallet", true, out, runRedeem),
		command("show-schedule", "print a lockup schedule", false, out, runShowSchedule),
		command("show-lockup", "print a lockup and its escrow balance", false, out, runShowLockup),
		command("estimate", "estimate what a redeem would transfer", false, out, runEstimate),
	}
}

func runCreateSchedule(ctx context.Context, env *environment, fs *flag.FlagSet, args []string) error {
	mintFlag := fs.String("mint", "", "token mint")
	startFlag := fs.String("start", "", "start of the first period, unix seconds or RFC 3339")
	periodsFlag := fs.Uint64("periods", 0, "number of unlock periods")
	durationFlag := fs.Duration("period-duration", 0, "duration of each period, whole seconds")
	quantityFlag := fs.Uint64("quantity", 0, "total token quantity, in base units")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mint, err := parseKey("mint", *mintFlag)
	if err != nil {
		return err
	}
	start, err := parseTimestamp("start", *startFlag)
	if err != nil {
		return err
	}

	result, err := env.client.CreateLockupSchedule(ctx, env.wallet, &lockup.CreateLockupScheduleParams{
		TokenMint:          mint,
		StartTimestamp:     start,
		NumberPeriods:      *periodsFlag,
		PeriodDuration:     *durationFlag,
		TotalTokenQuantity: *quantityFlag,
	})
	if result != nil {
		fmt.Fprintf(env.out, "schedule:  %s\n", base58.Encode(result.Address))
		printSignature(env.out, result.Signature)
	}
	if err != nil {
		return reportAmbiguous(env, err)
	}

	printSchedule(env.out, result.State)
	return nil
}

func runLock(ctx context.Context, env *environment, fs *flag.FlagSet, args []string) error {
	scheduleFlag := fs.String("schedule", "", "lockup schedule address")
	receiverFlag := fs.String("receiver", "", "wallet allowed to redeem the locked tokens")
	sourceFlag := fs.String("source", "", "token account to lock from (default: the wallet's associated token account)")
	quantityFlag := fs.Uint64("quantity", 0, "token quantity, in base units")
	if err := fs.Parse(args); err != nil {
		return err
	}

	scheduleAddress, err := parseKey("schedule", *scheduleFlag)
	if err != nil {
		return err
	}
	receiver, err := parseKey("receiver", *receiverFlag)
	if err != nil {
		return err
	}
	source, err := parseOptionalKey("source", *sourceFlag)
	if err != nil {
		return err
	}

	schedule, err := env.client.GetLockupSchedule(ctx, scheduleAddress)
	if err != nil {
		return err
	}

	if source == nil {
		source, err = token.GetAssociatedAccount(env.wallet.PublicKey(), schedule.TokenMint)
		if err != nil {
			return err
		}
	}

	result, err := env.client.LockTokens(ctx, env.wallet, &lockup.LockTokensParams{
		LockupScheduleState: scheduleAddress,
		TokenMint:           schedule.TokenMint,
		SourceTokenAccount:  source,
		Receiver:            receiver,
		Quantity:            *quantityFlag,
	})
	if result != nil {
		fmt.Fprintf(env.out, "lockup:    %s\n", base58.Encode(result.Address))
		fmt.Fprintf(env.out, "escrow:    %s\n", base58.Encode(result.TokenAccount))
		printSignature(env.out, result.Signature)
	}
	if err != nil {
		return reportAmbiguous(env, err)
	}

	printLockup(env.out, result.State)
	return nil
}

func runRedeem(ctx context.Context, env *environment, fs *flag.FlagSet, args []string) error {
	lockupFlag := fs.String("lockup", "", "lockup address")
	destinationFlag := fs.String("destination", "", "token account to receive tokens (default: the wallet's associated token account)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	lockupAddress, err := parseKey("lockup", *lockupFlag)
	if err != nil {
		return err
	}
	destination, err := parseOptionalKey("destination", *destinationFlag)
	if err != nil {
		return err
	}

	state, err := env.client.GetLockup(ctx, lockupAddress)
	if err != nil {
		return err
	}

	if destination == nil {
		schedule, err := env.client.GetLockupSchedule(ctx, state.LockupScheduleState)
		if err != nil {
			return err
		}
		destination, err = token.GetAssociatedAccount(env.wallet.PublicKey(), schedule.TokenMint)
		if err != nil {
			return err
		}
	}

	result, err := env.client.RedeemTokens(ctx, env.wallet, &lockup.RedeemTokensParams{
		LockupScheduleState:   state.LockupScheduleState,
		LockupState:           lockupAddress,
		LockupTokenAccount:    state.LockupTokenAccount,
		ReceivingTokenAccount: destination,
	})
	if result != nil {
		printSignature(env.out, result.Signature)
	}
	if err != nil {
		return reportAmbiguous(env, err)
	}

	fmt.Fprintf(env.out, "redeemed:  %d periods\n", result.State.PeriodsRedeemed-state.PeriodsRedeemed)
	printLockup(env.out, result.State)
	return nil
}

func runShowSchedule(ctx context.Context, env *environment, fs *flag.FlagSet, args []string) error {
	addressFlag := fs.String("address", "", "lockup schedule address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	address, err := parseKey("address", *addressFlag)
	if err != nil {
		return err
	}

	schedule, err := env.client.GetLockupSchedule(ctx, address)
	if err != nil {
		return err
	}

	printSchedule(env.out, schedule)
	return nil
}

func runShowLockup(ctx context.Context, env *environment, fs *flag.FlagSet, args []string) error {
	addressFlag := fs.String("address", "", "lockup address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	address, err := parseKey("address", *addressFlag)
	if err != nil {
		return err
	}

	state, err := env.client.GetLockup(ctx, address)
	if err != nil {
		return err
	}
	schedule, err := env.client.GetLockupSchedule(ctx, state.LockupScheduleState)
	if err != nil {
		return err
	}

	printLockup(env.out, state)

	escrow, err := token.NewClient(env.rpc, schedule.TokenMint).GetAccount(state.LockupTokenAccount, solana.CommitmentFinalized)
	if err != nil {
		env.log.WithError(err).Warn("failure reading escrow token account")
		return nil
	}
	fmt.Fprintf(env.out, "escrow balance: %d\n", escrow.Amount)
	return nil
}

func runEstimate(ctx context.Context, env *environment, fs *flag.FlagSet, args []string) error {
	lockupFlag := fs.String("lockup", "", "lockup address")
	atFlag := fs.String("at", "", "time to estimate at, unix seconds or RFC 3339 (default: now)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	address, err := parseKey("lockup", *lockupFlag)
	if err != nil {
		return err
	}

	at := time.Now()
	if *atFlag != "" {
		unix, err := parseTimestamp("at", *atFlag)
		if err != nil {
			return err
		}
		at = time.Unix(unix, 0)
	}

	redemption, err := env.client.EstimateRedemption(ctx, address, at)
	if err != nil {
		return err
	}

	printRedemption(env.out, redemption)
	return nil
}

// reportAmbiguous tells the operator to re-query before retrying, since the
// transaction may still land.
func reportAmbiguous(env *environment, err error) error {
	if errors.Is(err, lockup.ErrAmbiguousOutcome) {
		fmt.Fprintln(env.out, "outcome unknown: the transaction may still finalize, check the account before retrying")
	}
	if code, index, ok := tokendistributor.ParseProgramError(err); ok {
		env.log.WithField("instruction", index).Info(code.Error())
	}
	return err
}

func printSignature(w io.Writer, sig solana.Signature) {
	if sig == (solana.Signature{}) {
		return
	}
	fmt.Fprintf(w, "signature: %s\n", sig.String())
}

func printSchedule(w io.Writer, s *tokendistributor.LockupScheduleState) {
	fmt.Fprintf(w, "initializer:     %s\n", base58.Encode(s.Initializer))
	fmt.Fprintf(w, "mint:            %s\n", base58.Encode(s.TokenMint))
	fmt.Fprintf(w, "start:           %s\n", formatUnix(s.StartTimestamp))
	fmt.Fprintf(w, "end:             %s\n", formatUnix(s.EndTimestamp()))
	fmt.Fprintf(w, "periods:         %d x %s\n", s.NumberPeriods, time.Duration(s.PeriodDuration)*time.Second)
	fmt.Fprintf(w, "total quantity:  %d\n", s.TotalTokenQuantity)
	fmt.Fprintf(w, "locked quantity: %d\n", s.TokenQuantityLocked)
}

func printLockup(w io.Writer, l *tokendistributor.LockupState) {
	fmt.Fprintf(w, "schedule:        %s\n", base58.Encode(l.LockupScheduleState))
	fmt.Fprintf(w, "receiver:        %s\n", base58.Encode(l.ReceivingAccount))
	fmt.Fprintf(w, "escrow:          %s\n", base58.Encode(l.LockupTokenAccount))
	fmt.Fprintf(w, "quantity:        %d\n", l.TokenQuantity)
	fmt.Fprintf(w, "redeemed:        %d periods\n", l.PeriodsRedeemed)
}

func printRedemption(w io.Writer, r *tokendistributor.Redemption) {
	fmt.Fprintf(w, "periods: %d\n", r.Periods)
	fmt.Fprintf(w, "tokens:  %d\n", r.Tokens)
	fmt.Fprintf(w, "final:   %t\n", r.Final)
	if r.NextUnlock > 0 {
		fmt.Fprintf(w, "next unlock: %s\n", formatUnix(r.NextUnlock))
	}
}

func formatUnix(ts uint64) string {
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}
