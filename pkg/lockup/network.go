package lockup

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/token-distributor/pkg/cache"
	"github.com/code-payments/token-distributor/pkg/metrics"
	"github.com/code-payments/token-distributor/pkg/rate"
	"github.com/code-payments/token-distributor/pkg/solana"
)

const (
	networkMetricsStructName = "lockup.network"

	rpcRateLimitKey = "rpc"

	rentCacheBudget = 64
)

// Network is the subset of the Solana RPC surface the lockup client consumes.
type Network interface {
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error)
	SubmitTransaction(ctx context.Context, txn solana.Transaction, opts solana.SubmitOptions) (solana.Signature, error)
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (*solana.SignatureStatus, error)
	GetAccountInfo(ctx context.Context, account ed25519.PublicKey, commitment solana.Commitment) (solana.AccountInfo, error)
}

type rpcNetwork struct {
	log     *logrus.Entry
	client  solana.Client
	limiter rate.Limiter

	// Rent exemption minimums only change with a cluster feature activation.
	rentCache *cache.Cache[uint64, uint64]
}

// NewRPCNetwork adapts a JSON-RPC solana.Client to Network. Calls are rate
// limited when LOCKUP_RPC_RATE_LIMIT is positive, and traced when the context
// carries a New Relic transaction.
func NewRPCNetwork(client solana.Client, configProvider ConfigProvider) Network {
	conf := configProvider()

	var limiter rate.Limiter = &rate.NoLimiter{}
	if limit := conf.rpcRateLimit.Get(context.Background()); limit > 0 {
		limiter = rate.NewLocalRateLimiter(xrate.Limit(limit))
	}

	return &rpcNetwork{
		log:       logrus.StandardLogger().WithField("type", "lockup/network"),
		client:    client,
		limiter:   limiter,
		rentCache: cache.New[uint64, uint64](rentCacheBudget),
	}
}

func (n *rpcNetwork) begin(ctx context.Context, method string) (*metrics.MethodTracer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := n.limiter.Wait(ctx, rpcRateLimitKey); err != nil {
		return nil, err
	}
	return metrics.TraceMethodCall(ctx, networkMetricsStructName, method), nil
}

func (n *rpcNetwork) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	if lamports, ok := n.rentCache.Retrieve(size); ok {
		return lamports, nil
	}

	tracer, err := n.begin(ctx, "GetMinimumBalanceForRentExemption")
	if err != nil {
		return 0, err
	}
	defer tracer.End()

	lamports, err := n.client.GetMinimumBalanceForRentExemption(size)
	if err != nil {
		tracer.OnError(err)
		return 0, err
	}

	// Concurrent misses race to insert the same value.
	_ = n.rentCache.Insert(size, lamports, 1)
	return lamports, nil
}

func (n *rpcNetwork) GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error) {
	tracer, err := n.begin(ctx, "GetLatestBlockhash")
	if err != nil {
		return solana.Blockhash{}, err
	}
	defer tracer.End()

	blockhash, err := n.client.GetLatestBlockhash()
	tracer.OnError(err)
	return blockhash, err
}

func (n *rpcNetwork) SubmitTransaction(ctx context.Context, txn solana.Transaction, opts solana.SubmitOptions) (solana.Signature, error) {
	tracer, err := n.begin(ctx, "SubmitTransaction")
	if err != nil {
		return solana.Signature{}, err
	}
	defer tracer.End()

	tracer.AddAttribute("signature", txn.Signature().String())

	sig, err := n.client.SubmitTransaction(txn, opts)
	if err != nil {
		n.log.WithError(err).WithField("signature", txn.Signature().String()).Debug("submission failed")
	}
	tracer.OnError(err)
	return sig, err
}

func (n *rpcNetwork) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*solana.SignatureStatus, error) {
	tracer, err := n.begin(ctx, "GetSignatureStatus")
	if err != nil {
		return nil, err
	}
	defer tracer.End()

	return n.client.GetSignatureStatus(sig)
}

func (n *rpcNetwork) GetAccountInfo(ctx context.Context, account ed25519.PublicKey, commitment solana.Commitment) (solana.AccountInfo, error) {
	tracer, err := n.begin(ctx, "GetAccountInfo")
	if err != nil {
		return solana.AccountInfo{}, err
	}
	defer tracer.End()

	tracer.AddAttribute("account", base58.Encode(account))

	info, err := n.client.GetAccountInfo(account, commitment)
	if err != solana.ErrNoAccountInfo {
		tracer.OnError(err)
	}
	return info, err
}
