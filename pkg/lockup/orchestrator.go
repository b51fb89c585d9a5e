package lockup

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-distributor/pkg/metrics"
	"github.com/code-payments/token-distributor/pkg/retry"
	"github.com/code-payments/token-distributor/pkg/retry/backoff"
	"github.com/code-payments/token-distributor/pkg/solana"
	"github.com/code-payments/token-distributor/pkg/solana/system"
	"github.com/code-payments/token-distributor/pkg/solana/token"
	"github.com/code-payments/token-distributor/pkg/solana/tokendistributor"
)

const (
	submittedTransactionsMetricName = "Lockup/submitted_transactions"
	confirmationLatencyMetricName   = "Lockup/confirmation_latency"
	ambiguousOutcomeEventName       = "LockupAmbiguousOutcome"
)

var (
	errNotFinalized      = errors.New("transaction not finalized")
	errTransactionFailed = errors.New("transaction failed")
)

// CreateLockupSchedule creates a schedule account owned by the program and
// initializes it with params. The initializer is the wallet.
func (c *Client) CreateLockupSchedule(ctx context.Context, wallet Wallet, params *CreateLockupScheduleParams) (*ScheduleResult, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "CreateLockupSchedule")
	defer tracer.End()

	log := c.operationLog(tracer, "create_lockup_schedule", wallet)

	args, err := params.validate()
	if err != nil {
		log.WithError(err).Info("invalid parameters")
		return nil, err
	}

	scheduleKey, err := generateKey()
	if err != nil {
		return nil, err
	}
	result := &ScheduleResult{Address: scheduleKey.Public().(ed25519.PublicKey)}
	log = log.WithField("schedule", base58.Encode(result.Address))

	lamports, err := c.network.GetMinimumBalanceForRentExemption(ctx, tokendistributor.LockupScheduleStateSize)
	if err != nil {
		log.WithError(err).Warn("failure getting rent exemption balance")
		return nil, errors.Wrap(err, "failed to get rent exemption balance")
	}

	txn := &pendingTransaction{
		instructions: []solana.Instruction{
			system.CreateAccount(
				wallet.PublicKey(),
				result.Address,
				c.program,
				lamports,
				tokendistributor.LockupScheduleStateSize,
			),
			tokendistributor.NewCreateLockupScheduleInstruction(
				c.program,
				&tokendistributor.CreateLockupScheduleInstructionAccounts{
					Initializer:         wallet.PublicKey(),
					LockupScheduleState: result.Address,
					TokenMint:           params.TokenMint,
				},
				args,
			),
		},
		signers: []ed25519.PrivateKey{scheduleKey},
	}

	result.Signature, err = c.execute(ctx, log, wallet, txn)
	if err != nil {
		tracer.OnError(err)
		return result, err
	}

	if err := c.waitForPropagation(ctx); err != nil {
		return result, err
	}

	result.State, err = c.GetLockupSchedule(ctx, result.Address)
	if err != nil {
		log.WithError(err).Warn("failure reading lockup schedule")
		tracer.OnError(err)
		return result, err
	}
	return result, nil
}

// LockTokens moves params.Quantity tokens into a new escrow token account
// controlled by the program and records the lockup for params.Receiver. The
// wallet must be the schedule's initializer and own the source token account.
// Locks that would exceed the schedule's total are rejected before submission.
func (c *Client) LockTokens(ctx context.Context, wallet Wallet, params *LockTokensParams) (*LockupResult, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "LockTokens")
	defer tracer.End()

	log := c.operationLog(tracer, "lock_tokens", wallet)

	if err := params.validate(); err != nil {
		log.WithError(err).Info("invalid parameters")
		return nil, err
	}

	schedule, err := c.GetLockupSchedule(ctx, params.LockupScheduleState)
	if err != nil {
		log.WithError(err).Info("failure reading lockup schedule")
		return nil, err
	}
	if err := params.validateSchedule(schedule); err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"locked": schedule.TokenQuantityLocked,
			"total":  schedule.TotalTokenQuantity,
		}).Info("lock does not fit the schedule")
		return nil, err
	}

	lockupKey, err := generateKey()
	if err != nil {
		return nil, err
	}
	tempTokenKey, err := generateKey()
	if err != nil {
		return nil, err
	}

	result := &LockupResult{
		Address:      lockupKey.Public().(ed25519.PublicKey),
		TokenAccount: tempTokenKey.Public().(ed25519.PublicKey),
	}
	log = log.WithFields(logrus.Fields{
		"schedule":      base58.Encode(params.LockupScheduleState),
		"lockup":        base58.Encode(result.Address),
		"token_account": base58.Encode(result.TokenAccount),
		"receiver":      base58.Encode(params.Receiver),
		"quantity":      params.Quantity,
	})

	lockupLamports, err := c.network.GetMinimumBalanceForRentExemption(ctx, tokendistributor.LockupStateSize)
	if err != nil {
		log.WithError(err).Warn("failure getting rent exemption balance")
		return nil, errors.Wrap(err, "failed to get rent exemption balance")
	}
	tokenLamports, err := c.network.GetMinimumBalanceForRentExemption(ctx, token.AccountSize)
	if err != nil {
		log.WithError(err).Warn("failure getting rent exemption balance")
		return nil, errors.Wrap(err, "failed to get rent exemption balance")
	}

	txn := &pendingTransaction{
		instructions: []solana.Instruction{
			system.CreateAccount(
				wallet.PublicKey(),
				result.Address,
				c.program,
				lockupLamports,
				tokendistributor.LockupStateSize,
			),
			system.CreateAccount(
				wallet.PublicKey(),
				result.TokenAccount,
				token.ProgramKey,
				tokenLamports,
				token.AccountSize,
			),
			token.InitializeAccount(result.TokenAccount, params.TokenMint, wallet.PublicKey()),
			token.Transfer(params.SourceTokenAccount, result.TokenAccount, wallet.PublicKey(), params.Quantity),
			tokendistributor.NewLockTokensInstruction(
				c.program,
				&tokendistributor.LockTokensInstructionAccounts{
					Initializer:         wallet.PublicKey(),
					LockupScheduleState: params.LockupScheduleState,
					LockupState:         result.Address,
					Receiver:            params.Receiver,
					TempTokenAccount:    result.TokenAccount,
				},
				&tokendistributor.LockTokensInstructionArgs{
					TokenQuantity: params.Quantity,
				},
			),
		},
		signers: []ed25519.PrivateKey{lockupKey, tempTokenKey},
	}

	result.Signature, err = c.execute(ctx, log, wallet, txn)
	if err != nil {
		tracer.OnError(err)
		return result, err
	}

	if err := c.waitForPropagation(ctx); err != nil {
		return result, err
	}

	result.State, err = c.GetLockup(ctx, result.Address)
	if err != nil {
		log.WithError(err).Warn("failure reading lockup")
		tracer.OnError(err)
		return result, err
	}
	return result, nil
}

// RedeemTokens transfers every unlocked, unredeemed period of the lockup to
// params.ReceivingTokenAccount. The wallet must be the lockup's receiver.
func (c *Client) RedeemTokens(ctx context.Context, wallet Wallet, params *RedeemTokensParams) (*LockupResult, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "RedeemTokens")
	defer tracer.End()

	log := c.operationLog(tracer, "redeem_tokens", wallet)

	if err := params.validate(); err != nil {
		log.WithError(err).Info("invalid parameters")
		return nil, err
	}

	authority, err := c.Authority()
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive program authority")
	}

	result := &LockupResult{
		Address:      params.LockupState,
		TokenAccount: params.LockupTokenAccount,
	}
	log = log.WithFields(logrus.Fields{
		"schedule":         base58.Encode(params.LockupScheduleState),
		"lockup":           base58.Encode(params.LockupState),
		"token_account":    base58.Encode(params.LockupTokenAccount),
		"receiving_tokens": base58.Encode(params.ReceivingTokenAccount),
	})

	txn := &pendingTransaction{
		instructions: []solana.Instruction{
			tokendistributor.NewRedeemTokensInstruction(
				c.program,
				&tokendistributor.RedeemTokensInstructionAccounts{
					Receiver:              wallet.PublicKey(),
					LockupScheduleState:   params.LockupScheduleState,
					LockupState:           params.LockupState,
					LockupTokenAccount:    params.LockupTokenAccount,
					ReceivingTokenAccount: params.ReceivingTokenAccount,
					Authority:             authority,
				},
			),
		},
	}

	result.Signature, err = c.execute(ctx, log, wallet, txn)
	if err != nil {
		tracer.OnError(err)
		return result, err
	}

	if err := c.waitForPropagation(ctx); err != nil {
		return result, err
	}

	result.State, err = c.GetLockup(ctx, result.Address)
	if err != nil {
		log.WithError(err).Warn("failure reading lockup")
		tracer.OnError(err)
		return result, err
	}
	return result, nil
}

type pendingTransaction struct {
	instructions []solana.Instruction

	// signers are the generated keypairs that sign before the wallet.
	signers []ed25519.PrivateKey
}

// execute signs, submits and awaits finality of txn. The returned signature
// is set whenever the transaction was fully signed, including on error.
func (c *Client) execute(ctx context.Context, log *logrus.Entry, wallet Wallet, pending *pendingTransaction) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}

	blockhash, err := c.network.GetLatestBlockhash(ctx)
	if err != nil {
		log.WithError(err).Warn("failure getting latest blockhash")
		return solana.Signature{}, errors.Wrap(err, "failed to get latest blockhash")
	}

	txn := solana.NewTransaction(wallet.PublicKey(), pending.instructions...)
	txn.SetBlockhash(blockhash)

	if err := txn.Sign(pending.signers...); err != nil {
		log.WithError(err).Warn("failure partially signing transaction")
		return solana.Signature{}, errors.Wrap(err, "failed to partially sign transaction")
	}

	if err := wallet.SignTransaction(ctx, &txn); err != nil {
		log.WithError(err).Info("wallet did not sign transaction")
		return solana.Signature{}, classify(err, ErrSigningRejected)
	}
	if missing := txn.MissingSigners(); len(missing) > 0 {
		log.Info("wallet returned a partially signed transaction")
		return solana.Signature{}, classify(errors.Errorf("missing signature for %s", base58.Encode(missing[0])), ErrSigningRejected)
	}
	if err := txn.VerifySignatures(); err != nil {
		log.WithError(err).Info("wallet returned an invalid signature")
		return solana.Signature{}, classify(err, ErrSigningRejected)
	}

	sig := txn.Signature()
	log = log.WithField("signature", sig.String())

	// Nothing has been sent yet, so cancellation here has no remote effect.
	if err := ctx.Err(); err != nil {
		return sig, err
	}

	submitted, err := c.network.SubmitTransaction(ctx, txn, solana.SubmitOptions{
		SkipPreflight:       c.conf.skipPreflight.Get(ctx),
		PreflightCommitment: c.readCommitment(ctx),
	})
	if errors.Is(err, solana.ErrUnacknowledged) {
		log.WithError(err).Warn("transaction may have been relayed, outcome unknown")
		metrics.RecordEvent(ctx, ambiguousOutcomeEventName, map[string]interface{}{
			"signature": sig.String(),
			"error":     err.Error(),
		})
		return sig, classify(err, ErrAmbiguousOutcome)
	} else if err != nil {
		log.WithError(err).Warn("failure submitting transaction")
		return sig, classify(err, ErrSubmissionFault)
	}
	if submitted != (solana.Signature{}) && submitted != sig {
		log.WithField("returned_signature", submitted.String()).Warn("network returned an unexpected signature")
	}

	metrics.RecordCount(ctx, submittedTransactionsMetricName, 1)
	log.Debug("transaction submitted")

	start := time.Now()
	if err := c.awaitFinality(ctx, sig); err != nil {
		if errors.Is(err, ErrAmbiguousOutcome) {
			log.WithError(err).Warn("transaction outcome unknown")
			metrics.RecordEvent(ctx, ambiguousOutcomeEventName, map[string]interface{}{
				"signature": sig.String(),
				"error":     err.Error(),
			})
		} else {
			log.WithError(err).Info("transaction failed")
		}
		return sig, err
	}

	metrics.RecordDuration(ctx, confirmationLatencyMetricName, time.Since(start))
	log.Debug("transaction finalized")

	return sig, nil
}

// awaitFinality polls the signature status until the transaction is
// finalized, fails, or the confirmation timeout elapses.
func (c *Client) awaitFinality(ctx context.Context, sig solana.Signature) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.conf.confirmationTimeout.Get(ctx))
	defer cancel()

	pollInterval := c.conf.confirmationPollInterval.Get(ctx)

	var txErr *solana.TransactionError
	_, err := retry.Retry(
		timeoutCtx,
		func() error {
			status, err := c.network.GetSignatureStatus(timeoutCtx, sig)
			if err != nil {
				return err
			}
			if status == nil || !status.Finalized() {
				return errNotFinalized
			}
			if status.ErrorResult != nil {
				txErr = status.ErrorResult
				return errTransactionFailed
			}
			return nil
		},
		retry.NonRetriableErrors(errTransactionFailed),
		retry.Backoff(backoff.Constant(pollInterval), pollInterval),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errTransactionFailed):
		return classify(txErr, ErrSubmissionFault)
	case ctx.Err() != nil:
		return classify(err, ErrAmbiguousOutcome)
	case errors.Is(err, context.DeadlineExceeded):
		return classify(err, ErrConfirmationTimeout, ErrAmbiguousOutcome)
	default:
		return classify(err, ErrAmbiguousOutcome)
	}
}

// waitForPropagation gives RPC nodes time to serve the finalized state.
func (c *Client) waitForPropagation(ctx context.Context) error {
	delay := c.conf.propagationDelay.Get(ctx)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "transaction finalized, state not read")
	}
}

func (c *Client) operationLog(tracer *metrics.MethodTracer, operation string, wallet Wallet) *logrus.Entry {
	id := uuid.New().String()
	tracer.AddAttribute("operation_id", id)

	return c.log.WithFields(logrus.Fields{
		"method":       operation,
		"operation_id": id,
		"wallet":       base58.Encode(wallet.PublicKey()),
	})
}

func generateKey() (ed25519.PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate key")
	}
	return key, nil
}
