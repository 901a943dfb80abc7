package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerFixture struct {
	store      *memStore
	svc        *service.LedgerServiceImpl
	walletRepo *inMemoryWalletRepo
	txRepo     *inMemoryTransactionRepo
}

type stubGateway struct{}

func (stubGateway) RequestDebit(context.Context, string, int64) (*ports.DebitResult, error) {
	return &ports.DebitResult{Success: true}, nil
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	store := newMemStore()
	walletRepo := newInMemoryWalletRepo(store)
	txRepo := newInMemoryTransactionRepo(store)
	transactor := newInMemoryTransactor(store)
	cache := redisStorage.NewBalanceCache(rdb)

	svc := service.NewLedgerService(walletRepo, txRepo, transactor, stubGateway{}, cache, zerolog.Nop())
	return &ledgerFixture{store: store, svc: svc, walletRepo: walletRepo, txRepo: txRepo}
}

// seedWallet installs a funded user+wallet directly into the store.
func (f *ledgerFixture) seedWallet(email string, balance int64) *domain.Wallet {
	now := time.Now().UTC()
	user := &domain.User{ID: uuid.New(), Email: email, Active: true, CreatedAt: now, UpdatedAt: now}
	wallet := &domain.Wallet{ID: uuid.New(), OwnerID: user.ID, Balance: balance, Active: true, CreatedAt: now, UpdatedAt: now}

	f.store.mu.Lock()
	f.store.users[user.ID] = user
	f.store.wallets[wallet.ID] = wallet
	f.store.mu.Unlock()
	return wallet
}

func (f *ledgerFixture) balance(t *testing.T, walletID uuid.UUID) int64 {
	t.Helper()
	w, err := f.walletRepo.GetByID(context.Background(), walletID)
	require.NoError(t, err)
	require.NotNil(t, w)
	return w.Balance
}

// N callers race to withdraw from a wallet funded for only N-1 of them.
// Exactly one must lose, and the balance must land on zero, never below.
func TestConcurrency_WithdrawalsNeverOverdraw(t *testing.T) {
	f := newLedgerFixture(t)

	const n = 20
	const amount = int64(100)
	wallet := f.seedWallet("alice@example.com", (n-1)*amount)

	var wg sync.WaitGroup
	var succeeded, failed atomic.Int32

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Withdraw(context.Background(), wallet.ID, amount); err != nil {
				failed.Add(1)
			} else {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(n-1), succeeded.Load())
	assert.Equal(t, int32(1), failed.Load())
	assert.Equal(t, int64(0), f.balance(t, wallet.ID))

	// One entry per committed withdrawal, none for the refused one.
	entries, err := f.txRepo.ListByWallet(context.Background(), wallet.ID)
	require.NoError(t, err)
	assert.Len(t, entries, n-1)
}

// Concurrent deposits all land; none is lost to a race.
func TestConcurrency_DepositsAllApplied(t *testing.T) {
	f := newLedgerFixture(t)

	const n = 50
	wallet := f.seedWallet("alice@example.com", 0)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Deposit(context.Background(), wallet.ID, 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(n*10), f.balance(t, wallet.ID))

	entries, err := f.txRepo.ListByWallet(context.Background(), wallet.ID)
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

// Opposing transfers between the same two wallets must neither deadlock
// nor create or destroy money.
func TestConcurrency_OpposingTransfers(t *testing.T) {
	f := newLedgerFixture(t)

	alice := f.seedWallet("alice@example.com", 10_000)
	bob := f.seedWallet("bob@example.com", 10_000)

	const rounds = 25
	var wg sync.WaitGroup
	done := make(chan struct{})

	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.Transfer(context.Background(), alice.OwnerID, "bob@example.com", 10)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.Transfer(context.Background(), bob.OwnerID, "alice@example.com", 10)
			assert.NoError(t, err)
		}()
	}

	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("opposing transfers did not finish: likely deadlock")
	}

	total := f.balance(t, alice.ID) + f.balance(t, bob.ID)
	assert.Equal(t, int64(20_000), total, "transfers must conserve total funds")
}

// Every committed transfer leaves a matched OUT/IN pair with equal amounts
// and timestamps.
func TestConcurrency_TransferPairing(t *testing.T) {
	f := newLedgerFixture(t)

	alice := f.seedWallet("alice@example.com", 1_000)
	bob := f.seedWallet("bob@example.com", 0)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Transfer(context.Background(), alice.OwnerID, "bob@example.com", 100)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	outs, err := f.txRepo.ListByWallet(context.Background(), alice.ID)
	require.NoError(t, err)
	ins, err := f.txRepo.ListByWallet(context.Background(), bob.ID)
	require.NoError(t, err)

	require.Len(t, outs, n)
	require.Len(t, ins, n)

	inByTime := make(map[time.Time]domain.Transaction, n)
	for _, e := range ins {
		assert.Equal(t, domain.TransactionTypeTransferIn, e.Type)
		inByTime[e.CreatedAt] = e
	}
	for _, out := range outs {
		assert.Equal(t, domain.TransactionTypeTransferOut, out.Type)
		in, ok := inByTime[out.CreatedAt]
		require.True(t, ok, "each outgoing leg has its incoming twin")
		assert.Equal(t, out.Amount, in.Amount)
	}

	assert.Equal(t, int64(0), f.balance(t, alice.ID))
	assert.Equal(t, int64(1_000), f.balance(t, bob.ID))
}

// Mixed operations across several wallets: the sum of all balances plus
// withdrawn funds minus deposited funds stays constant.
func TestConcurrency_Conservation(t *testing.T) {
	f := newLedgerFixture(t)

	alice := f.seedWallet("alice@example.com", 5_000)
	bob := f.seedWallet("bob@example.com", 5_000)
	carol := f.seedWallet("carol@example.com", 5_000)

	var wg sync.WaitGroup
	var deposited, withdrawn atomic.Int64

	ops := []func(){
		func() {
			if _, err := f.svc.Deposit(context.Background(), alice.ID, 50); err == nil {
				deposited.Add(50)
			}
		},
		func() {
			if _, err := f.svc.Withdraw(context.Background(), bob.ID, 30); err == nil {
				withdrawn.Add(30)
			}
		},
		func() {
			_, _ = f.svc.Transfer(context.Background(), alice.OwnerID, "bob@example.com", 20)
		},
		func() {
			_, _ = f.svc.Transfer(context.Background(), carol.OwnerID, "alice@example.com", 10)
		},
	}

	for round := 0; round < 15; round++ {
		for _, op := range ops {
			wg.Add(1)
			go func(op func()) {
				defer wg.Done()
				op()
			}(op)
		}
	}
	wg.Wait()

	total := f.balance(t, alice.ID) + f.balance(t, bob.ID) + f.balance(t, carol.ID)
	expected := int64(15_000) + deposited.Load() - withdrawn.Load()
	assert.Equal(t, expected, total)
}

// An external deposit goes through the gateway once and then behaves like
// a plain deposit.
func TestIntegration_ExternalDeposit(t *testing.T) {
	f := newLedgerFixture(t)
	wallet := f.seedWallet("alice@example.com", 0)

	updated, err := f.svc.RequestExternalDeposit(context.Background(), "alice@example.com", 300)
	require.NoError(t, err)
	assert.Equal(t, int64(300), updated.Balance)

	entries, err := f.txRepo.ListByWallet(context.Background(), wallet.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TransactionTypeDeposit, entries[0].Type)
}
