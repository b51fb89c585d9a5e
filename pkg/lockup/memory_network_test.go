package lockup

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/token-distributor/pkg/solana"
	"github.com/code-payments/token-distributor/pkg/solana/system"
	"github.com/code-payments/token-distributor/pkg/solana/token"
	"github.com/code-payments/token-distributor/pkg/solana/tokendistributor"
)

const (
	testMintSize = 82

	lamportsPerByteYear = 3480
	exemptionYears      = 2
	accountStorageBytes = 128
)

// memoryNetwork is an in-memory ledger that executes the system, token and
// token distributor instructions used by the client. Transactions apply
// atomically and are finalized after pendingPolls status lookups.
type memoryNetwork struct {
	mu sync.Mutex

	program   ed25519.PublicKey
	authority ed25519.PublicKey

	accounts map[string]solana.AccountInfo
	now      uint64

	// blockhash advances with every accepted transaction; earlier ones stay
	// valid in recentBlockhashes.
	blockhash         solana.Blockhash
	recentBlockhashes map[solana.Blockhash]struct{}

	statuses  map[solana.Signature]*solana.SignatureStatus
	polls     map[solana.Signature]int
	submitted []solana.Transaction

	pendingPolls int

	// submitErr is returned before the transaction is accepted.
	submitErr error

	// responseErr is returned after the transaction is applied, as if the
	// response to the submission were lost.
	responseErr error

	// hideStatus applies the transaction but never reports its status.
	hideStatus bool

	// afterAccept runs once a transaction is applied, outside the lock.
	afterAccept func()

	blockhashErr   error
	accountInfoErr error
}

func newMemoryNetwork(program ed25519.PublicKey, now uint64) *memoryNetwork {
	authority, _, err := tokendistributor.GetAuthorityAddress(program)
	if err != nil {
		panic(err)
	}

	genesis := solana.Blockhash(sha256.Sum256([]byte("genesis")))
	return &memoryNetwork{
		program:           program,
		authority:         authority,
		accounts:          make(map[string]solana.AccountInfo),
		blockhash:         genesis,
		recentBlockhashes: map[solana.Blockhash]struct{}{genesis: {}},
		now:               now,
		statuses:          make(map[solana.Signature]*solana.SignatureStatus),
		polls:             make(map[solana.Signature]int),
	}
}

func rentExemptBalance(size uint64) uint64 {
	return (accountStorageBytes + size) * lamportsPerByteYear * exemptionYears
}

func (n *memoryNetwork) setNow(now uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.now = now
}

func (n *memoryNetwork) addMint(mint ed25519.PublicKey) {
	n.setAccount(mint, solana.AccountInfo{
		Data:     make([]byte, testMintSize),
		Owner:    token.ProgramKey,
		Lamports: rentExemptBalance(testMintSize),
	})
}

func (n *memoryNetwork) addTokenAccount(address, mint, owner ed25519.PublicKey, amount uint64) {
	account := &token.Account{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  token.AccountStateInitialized,
	}
	n.setAccount(address, solana.AccountInfo{
		Data:     account.Marshal(),
		Owner:    token.ProgramKey,
		Lamports: rentExemptBalance(token.AccountSize),
	})
}

func (n *memoryNetwork) setAccount(address ed25519.PublicKey, info solana.AccountInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accounts[string(address)] = info
}

func (n *memoryNetwork) account(address ed25519.PublicKey) (solana.AccountInfo, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	info, ok := n.accounts[string(address)]
	return info, ok
}

func (n *memoryNetwork) tokenBalance(address ed25519.PublicKey) uint64 {
	info, ok := n.account(address)
	if !ok {
		return 0
	}
	var account token.Account
	if !account.Unmarshal(info.Data) {
		return 0
	}
	return account.Amount
}

func (n *memoryNetwork) snapshot() map[string]solana.AccountInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	return cloneAccounts(n.accounts)
}

func (n *memoryNetwork) submittedTransactions() []solana.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]solana.Transaction(nil), n.submitted...)
}

func (n *memoryNetwork) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return rentExemptBalance(size), nil
}

func (n *memoryNetwork) GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error) {
	if err := ctx.Err(); err != nil {
		return solana.Blockhash{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return n.blockhash, n.blockhashErr
}

func (n *memoryNetwork) SubmitTransaction(ctx context.Context, txn solana.Transaction, opts solana.SubmitOptions) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}

	sig, afterAccept, err := n.submit(txn, opts)
	if err != nil {
		return sig, err
	}
	if afterAccept != nil {
		afterAccept()
	}

	n.mu.Lock()
	responseErr := n.responseErr
	n.mu.Unlock()
	if responseErr != nil {
		return solana.Signature{}, responseErr
	}
	return sig, nil
}

func (n *memoryNetwork) submit(txn solana.Transaction, opts solana.SubmitOptions) (solana.Signature, func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.submitted = append(n.submitted, txn)

	if n.submitErr != nil {
		return solana.Signature{}, nil, n.submitErr
	}

	if _, ok := n.recentBlockhashes[txn.Message.RecentBlockhash]; !ok {
		return solana.Signature{}, nil, solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
	}
	if err := txn.VerifySignatures(); err != nil {
		return solana.Signature{}, nil, solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
	}

	sig := txn.Signature()
	if _, ok := n.statuses[sig]; ok {
		return solana.Signature{}, nil, solana.NewTransactionError(solana.TransactionErrorDuplicateSignature)
	}

	ledger := cloneAccounts(n.accounts)
	var txErr *solana.TransactionError
	for i := range txn.Message.Instructions {
		if err := n.execute(ledger, txn.Message, i); err != nil {
			txErr = solana.TransactionErrorFromInstructionError(&solana.InstructionError{Index: i, Err: err})
			break
		}
	}

	if txErr != nil && !opts.SkipPreflight {
		return solana.Signature{}, nil, txErr
	}
	if txErr == nil {
		n.accounts = ledger
	}

	if !n.hideStatus {
		n.statuses[sig] = &solana.SignatureStatus{ErrorResult: txErr}
	}

	n.blockhash = sha256.Sum256(n.blockhash[:])
	n.recentBlockhashes[n.blockhash] = struct{}{}

	return sig, n.afterAccept, nil
}

func (n *memoryNetwork) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*solana.SignatureStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	status, ok := n.statuses[sig]
	if !ok {
		return nil, solana.ErrSignatureNotFound
	}

	n.polls[sig]++
	if n.polls[sig] <= n.pendingPolls {
		confirmations := 1
		return &solana.SignatureStatus{
			Confirmations:      &confirmations,
			ConfirmationStatus: "confirmed",
		}, nil
	}

	return &solana.SignatureStatus{
		ErrorResult:        status.ErrorResult,
		ConfirmationStatus: "finalized",
	}, nil
}

func (n *memoryNetwork) GetAccountInfo(ctx context.Context, account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return solana.AccountInfo{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.accountInfoErr != nil {
		return solana.AccountInfo{}, n.accountInfoErr
	}

	info, ok := n.accounts[string(account)]
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}
	return cloneAccount(info), nil
}

func (n *memoryNetwork) execute(ledger map[string]solana.AccountInfo, m solana.Message, index int) error {
	program := m.Accounts[m.Instructions[index].ProgramIndex]

	switch {
	case bytes.Equal(program, system.ProgramKey):
		return n.executeSystem(ledger, m, index)
	case bytes.Equal(program, token.ProgramKey):
		return n.executeToken(ledger, m, index)
	case bytes.Equal(program, n.program):
		return n.executeDistributor(ledger, m, index)
	default:
		return instructionError(solana.InstructionErrorIncorrectProgramID)
	}
}

func (n *memoryNetwork) executeSystem(ledger map[string]solana.AccountInfo, m solana.Message, index int) error {
	create, err := system.DecompileCreateAccount(m, index)
	if err != nil {
		return instructionError(solana.InstructionErrorInvalidInstructionData)
	}
	if !isSigner(m, create.Funder) || !isSigner(m, create.Address) {
		return instructionError(solana.InstructionErrorMissingRequiredSignature)
	}
	if _, ok := ledger[string(create.Address)]; ok {
		// SystemError::AccountAlreadyInUse
		return solana.CustomError(0)
	}

	ledger[string(create.Address)] = solana.AccountInfo{
		Data:     make([]byte, create.Size),
		Owner:    create.Owner,
		Lamports: create.Lamports,
	}
	return nil
}

func (n *memoryNetwork) executeToken(ledger map[string]solana.AccountInfo, m solana.Message, index int) error {
	command, err := token.GetCommand(m, index)
	if err != nil {
		return instructionError(solana.InstructionErrorInvalidInstructionData)
	}

	switch command {
	case token.CommandInitializeAccount:
		initialize, err := token.DecompileInitializeAccount(m, index)
		if err != nil {
			return instructionError(solana.InstructionErrorInvalidInstructionData)
		}

		info, ok := ledger[string(initialize.Account)]
		if !ok || !bytes.Equal(info.Owner, token.ProgramKey) || len(info.Data) != token.AccountSize {
			return instructionError(solana.InstructionErrorInvalidAccountData)
		}
		if mint, ok := ledger[string(initialize.Mint)]; !ok || len(mint.Data) != testMintSize {
			return instructionError(solana.InstructionErrorInvalidAccountData)
		}

		var account token.Account
		account.Unmarshal(info.Data)
		if account.State != token.AccountStateUninitialized {
			return instructionError(solana.InstructionErrorAccountAlreadyInitialized)
		}

		account = token.Account{
			Mint:  initialize.Mint,
			Owner: initialize.Owner,
			State: token.AccountStateInitialized,
		}
		info.Data = account.Marshal()
		ledger[string(initialize.Account)] = info
		return nil
	case token.CommandTransfer:
		transfer, err := token.DecompileTransfer(m, index)
		if err != nil {
			return instructionError(solana.InstructionErrorInvalidInstructionData)
		}
		if !isSigner(m, transfer.Owner) {
			return instructionError(solana.InstructionErrorMissingRequiredSignature)
		}
		return transferTokens(ledger, transfer.Source, transfer.Destination, transfer.Owner, transfer.Amount)
	default:
		return instructionError(solana.InstructionErrorInvalidInstructionData)
	}
}

func (n *memoryNetwork) executeDistributor(ledger map[string]solana.AccountInfo, m solana.Message, index int) error {
	instructionType, err := tokendistributor.GetInstructionType(m.Instructions[index].Data)
	if err != nil {
		return solana.CustomError(tokendistributor.ErrInvalidInstruction)
	}

	switch instructionType {
	case tokendistributor.InstructionCreateLockupSchedule:
		return n.createLockupSchedule(ledger, m, index)
	case tokendistributor.InstructionLockTokens:
		return n.lockTokens(ledger, m, index)
	default:
		return n.redeemTokens(ledger, m, index)
	}
}

func (n *memoryNetwork) createLockupSchedule(ledger map[string]solana.AccountInfo, m solana.Message, index int) error {
	args, accounts, err := tokendistributor.DecompileCreateLockupSchedule(n.program, m, index)
	if err != nil {
		return solana.CustomError(tokendistributor.ErrInvalidInstruction)
	}
	if !isSigner(m, accounts.Initializer) {
		return instructionError(solana.InstructionErrorMissingRequiredSignature)
	}
	if n.now > args.StartTimestamp {
		return solana.CustomError(tokendistributor.ErrInvalidStartTimestamp)
	}

	info, err := n.programAccount(ledger, accounts.LockupScheduleState, tokendistributor.LockupScheduleStateSize)
	if err != nil {
		return err
	}

	var schedule tokendistributor.LockupScheduleState
	if err := schedule.Unmarshal(info.Data); err != nil || schedule.IsInitialized {
		return instructionError(solana.InstructionErrorAccountAlreadyInitialized)
	}

	schedule = tokendistributor.LockupScheduleState{
		IsInitialized:      true,
		Initializer:        accounts.Initializer,
		TokenMint:          accounts.TokenMint,
		StartTimestamp:     args.StartTimestamp,
		NumberPeriods:      args.NumberPeriods,
		PeriodDuration:     args.PeriodDuration,
		TotalTokenQuantity: args.TotalTokenQuantity,
	}
	info.Data = schedule.Marshal()
	ledger[string(accounts.LockupScheduleState)] = info
	return nil
}

func (n *memoryNetwork) lockTokens(ledger map[string]solana.AccountInfo, m solana.Message, index int) error {
	args, accounts, err := tokendistributor.DecompileLockTokens(n.program, m, index)
	if err != nil {
		return solana.CustomError(tokendistributor.ErrInvalidInstruction)
	}
	if !isSigner(m, accounts.Initializer) {
		return instructionError(solana.InstructionErrorMissingRequiredSignature)
	}

	scheduleInfo, err := n.programAccount(ledger, accounts.LockupScheduleState, tokendistributor.LockupScheduleStateSize)
	if err != nil {
		return err
	}
	lockupInfo, err := n.programAccount(ledger, accounts.LockupState, tokendistributor.LockupStateSize)
	if err != nil {
		return err
	}

	var schedule tokendistributor.LockupScheduleState
	if err := schedule.Unmarshal(scheduleInfo.Data); err != nil || !schedule.IsInitialized {
		return solana.CustomError(tokendistributor.ErrInvalidLockupScheduleData)
	}
	if !bytes.Equal(schedule.Initializer, accounts.Initializer) {
		return solana.CustomError(tokendistributor.ErrIncorrectOwner)
	}
	if n.now > schedule.StartTimestamp {
		return solana.CustomError(tokendistributor.ErrInvalidStartTimestamp)
	}

	tempInfo, ok := ledger[string(accounts.TempTokenAccount)]
	if !ok || !bytes.Equal(tempInfo.Owner, token.ProgramKey) {
		return instructionError(solana.InstructionErrorInvalidAccountData)
	}
	var temp token.Account
	if !temp.Unmarshal(tempInfo.Data) || temp.State != token.AccountStateInitialized {
		return instructionError(solana.InstructionErrorInvalidAccountData)
	}
	if !bytes.Equal(temp.Mint, schedule.TokenMint) {
		return solana.CustomError(tokendistributor.ErrInvalidMint)
	}
	if temp.Amount != args.TokenQuantity {
		return solana.CustomError(tokendistributor.ErrExpectedAmountMismatch)
	}

	temp.Owner = n.authority
	tempInfo.Data = temp.Marshal()
	ledger[string(accounts.TempTokenAccount)] = tempInfo

	lockup := tokendistributor.LockupState{
		IsInitialized:       true,
		LockupScheduleState: accounts.LockupScheduleState,
		ReceivingAccount:    accounts.Receiver,
		LockupTokenAccount:  accounts.TempTokenAccount,
		TokenQuantity:       args.TokenQuantity,
	}
	lockupInfo.Data = lockup.Marshal()
	ledger[string(accounts.LockupState)] = lockupInfo

	schedule.TokenQuantityLocked += args.TokenQuantity
	scheduleInfo.Data = schedule.Marshal()
	ledger[string(accounts.LockupScheduleState)] = scheduleInfo
	return nil
}

func (n *memoryNetwork) redeemTokens(ledger map[string]solana.AccountInfo, m solana.Message, index int) error {
	accounts, err := tokendistributor.DecompileRedeemTokens(n.program, m, index)
	if err != nil {
		return solana.CustomError(tokendistributor.ErrInvalidInstruction)
	}
	if !isSigner(m, accounts.Receiver) {
		return instructionError(solana.InstructionErrorMissingRequiredSignature)
	}

	scheduleInfo, err := n.programAccount(ledger, accounts.LockupScheduleState, tokendistributor.LockupScheduleStateSize)
	if err != nil {
		return err
	}
	lockupInfo, err := n.programAccount(ledger, accounts.LockupState, tokendistributor.LockupStateSize)
	if err != nil {
		return err
	}

	var schedule tokendistributor.LockupScheduleState
	if err := schedule.Unmarshal(scheduleInfo.Data); err != nil || !schedule.IsInitialized {
		return solana.CustomError(tokendistributor.ErrInvalidLockupScheduleData)
	}
	var lockup tokendistributor.LockupState
	if err := lockup.Unmarshal(lockupInfo.Data); err != nil || !lockup.IsInitialized {
		return solana.CustomError(tokendistributor.ErrInvalidLockupScheduleData)
	}

	if !bytes.Equal(lockup.ReceivingAccount, accounts.Receiver) {
		return solana.CustomError(tokendistributor.ErrUnauthorizedAccount)
	}
	if !bytes.Equal(lockup.LockupScheduleState, accounts.LockupScheduleState) {
		return solana.CustomError(tokendistributor.ErrIncorrectSchedule)
	}
	if !bytes.Equal(accounts.Authority, n.authority) {
		return instructionError(solana.InstructionErrorInvalidArgument)
	}

	redemption, err := tokendistributor.EstimateRedemption(&schedule, &lockup, unixTime(n.now))
	if err != nil {
		return solana.CustomError(tokendistributor.ErrInvalidLockupScheduleData)
	}

	if redemption.Tokens > 0 {
		if err := transferTokens(ledger, accounts.LockupTokenAccount, accounts.ReceivingTokenAccount, n.authority, redemption.Tokens); err != nil {
			return err
		}
	}

	lockup.PeriodsRedeemed += redemption.Periods
	lockupInfo.Data = lockup.Marshal()
	ledger[string(accounts.LockupState)] = lockupInfo
	return nil
}

func (n *memoryNetwork) programAccount(ledger map[string]solana.AccountInfo, address ed25519.PublicKey, size int) (solana.AccountInfo, error) {
	info, ok := ledger[string(address)]
	if !ok || !bytes.Equal(info.Owner, n.program) {
		return solana.AccountInfo{}, solana.CustomError(tokendistributor.ErrIncorrectOwner)
	}
	if info.Lamports < rentExemptBalance(uint64(len(info.Data))) {
		return solana.AccountInfo{}, solana.CustomError(tokendistributor.ErrNotRentExempt)
	}
	if len(info.Data) != size {
		return solana.AccountInfo{}, solana.CustomError(tokendistributor.ErrInvalidLockupScheduleData)
	}
	return info, nil
}

func transferTokens(ledger map[string]solana.AccountInfo, source, destination, owner ed25519.PublicKey, amount uint64) error {
	sourceInfo, ok := ledger[string(source)]
	if !ok || !bytes.Equal(sourceInfo.Owner, token.ProgramKey) {
		return instructionError(solana.InstructionErrorInvalidAccountData)
	}
	destinationInfo, ok := ledger[string(destination)]
	if !ok || !bytes.Equal(destinationInfo.Owner, token.ProgramKey) {
		return instructionError(solana.InstructionErrorInvalidAccountData)
	}

	var from, to token.Account
	if !from.Unmarshal(sourceInfo.Data) || !to.Unmarshal(destinationInfo.Data) {
		return instructionError(solana.InstructionErrorInvalidAccountData)
	}
	if from.State != token.AccountStateInitialized || to.State != token.AccountStateInitialized {
		// TokenError::UninitializedState
		return solana.CustomError(2)
	}
	if !bytes.Equal(from.Mint, to.Mint) {
		// TokenError::MintMismatch
		return solana.CustomError(3)
	}
	if !bytes.Equal(from.Owner, owner) {
		// TokenError::OwnerMismatch
		return solana.CustomError(4)
	}
	if from.Amount < amount {
		// TokenError::InsufficientFunds
		return solana.CustomError(1)
	}

	if bytes.Equal(source, destination) {
		return nil
	}

	from.Amount -= amount
	to.Amount += amount

	sourceInfo.Data = from.Marshal()
	destinationInfo.Data = to.Marshal()
	ledger[string(source)] = sourceInfo
	ledger[string(destination)] = destinationInfo
	return nil
}

func isSigner(m solana.Message, key ed25519.PublicKey) bool {
	for i := 0; i < int(m.Header.NumSignatures); i++ {
		if bytes.Equal(m.Accounts[i], key) {
			return true
		}
	}
	return false
}

func instructionError(key solana.InstructionErrorKey) error {
	return errors.New(string(key))
}

func cloneAccounts(accounts map[string]solana.AccountInfo) map[string]solana.AccountInfo {
	cloned := make(map[string]solana.AccountInfo, len(accounts))
	for k, v := range accounts {
		cloned[k] = cloneAccount(v)
	}
	return cloned
}

func cloneAccount(info solana.AccountInfo) solana.AccountInfo {
	info.Data = append([]byte(nil), info.Data...)
	info.Owner = append(ed25519.PublicKey(nil), info.Owner...)
	return info
}

func unixTime(ts uint64) time.Time {
	return time.Unix(int64(ts), 0)
}
