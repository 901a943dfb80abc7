package integration

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memStore is a single in-memory database shared by the in-memory repos.
// One mutex is held for the whole lifetime of an open transaction (Begin to
// Commit/Rollback), which serializes atomic units exactly like row locks
// would: concurrent operations see either all of a unit's effects or none.
type memStore struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*domain.User
	wallets map[uuid.UUID]*domain.Wallet
	entries []domain.Transaction
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[uuid.UUID]*domain.User),
		wallets: make(map[uuid.UUID]*domain.Wallet),
	}
}

// memTx stages mutations until Commit. Rollback discards them. The embedded
// nil pgx.Tx panics on any method the harness does not override, which is
// exactly what a test should do if code reaches for raw SQL here.
type memTx struct {
	pgx.Tx
	store *memStore
	done  bool

	stagedBalances    map[uuid.UUID]int64
	stagedUsers       []*domain.User
	stagedWallets     []*domain.Wallet
	stagedEntries     []domain.Transaction
	deactivateUsers   []uuid.UUID
	deactivateWallets []uuid.UUID
}

func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return fmt.Errorf("tx already closed")
	}
	for _, u := range t.stagedUsers {
		cp := *u
		t.store.users[u.ID] = &cp
	}
	for _, w := range t.stagedWallets {
		cp := *w
		t.store.wallets[w.ID] = &cp
	}
	for id, balance := range t.stagedBalances {
		t.store.wallets[id].Balance = balance
	}
	for _, id := range t.deactivateUsers {
		t.store.users[id].Active = false
	}
	for _, id := range t.deactivateWallets {
		t.store.wallets[id].Active = false
	}
	t.store.entries = append(t.store.entries, t.stagedEntries...)
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

// balanceOf reads the effective in-tx balance: staged if adjusted, else
// committed.
func (t *memTx) balanceOf(w *domain.Wallet) int64 {
	if b, ok := t.stagedBalances[w.ID]; ok {
		return b
	}
	return w.Balance
}

// --- Transactor ---

type inMemoryTransactor struct {
	store *memStore
}

func newInMemoryTransactor(store *memStore) *inMemoryTransactor {
	return &inMemoryTransactor{store: store}
}

func (tr *inMemoryTransactor) Begin(_ context.Context) (pgx.Tx, error) {
	tr.store.mu.Lock()
	return &memTx{
		store:          tr.store,
		stagedBalances: make(map[uuid.UUID]int64),
	}, nil
}

func asMemTx(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok {
		return nil, fmt.Errorf("expected in-memory tx, got %T", tx)
	}
	return mt, nil
}

// --- User repo ---

type inMemoryUserRepo struct {
	store *memStore
}

func newInMemoryUserRepo(store *memStore) *inMemoryUserRepo {
	return &inMemoryUserRepo{store: store}
}

func (r *inMemoryUserRepo) Create(_ context.Context, tx pgx.Tx, u *domain.User) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	for _, existing := range mt.store.users {
		if existing.Email == u.Email {
			return fmt.Errorf("email already exists")
		}
	}
	mt.stagedUsers = append(mt.stagedUsers, u)
	return nil
}

func (r *inMemoryUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok || !u.Active {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if u.Email == email && u.Active {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryUserRepo) Deactivate(_ context.Context, tx pgx.Tx, id uuid.UUID) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	if _, ok := mt.store.users[id]; !ok {
		return fmt.Errorf("user not found: %s", id)
	}
	mt.deactivateUsers = append(mt.deactivateUsers, id)
	return nil
}

// --- Wallet repo ---

type inMemoryWalletRepo struct {
	store *memStore
}

func newInMemoryWalletRepo(store *memStore) *inMemoryWalletRepo {
	return &inMemoryWalletRepo{store: store}
}

func (r *inMemoryWalletRepo) Create(_ context.Context, tx pgx.Tx, w *domain.Wallet) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	mt.stagedWallets = append(mt.stagedWallets, w)
	return nil
}

func (r *inMemoryWalletRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	w, ok := r.store.wallets[id]
	if !ok || !w.Active {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByOwner(_ context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.findByOwnerLocked(ownerID), nil
}

func (r *inMemoryWalletRepo) findByOwnerLocked(ownerID uuid.UUID) *domain.Wallet {
	for _, w := range r.store.wallets {
		if w.OwnerID == ownerID && w.Active {
			cp := *w
			return &cp
		}
	}
	return nil
}

func (r *inMemoryWalletRepo) GetByOwnerEmail(_ context.Context, email string) (*domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if u.Email == email && u.Active {
			return r.findByOwnerLocked(u.ID), nil
		}
	}
	return nil, nil
}

func (r *inMemoryWalletRepo) GetByIDForUpdate(_ context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	mt, err := asMemTx(tx)
	if err != nil {
		return nil, err
	}
	w, ok := mt.store.wallets[id]
	if !ok || !w.Active {
		return nil, nil
	}
	cp := *w
	cp.Balance = mt.balanceOf(w)
	return &cp, nil
}

func (r *inMemoryWalletRepo) AdjustBalance(_ context.Context, tx pgx.Tx, walletID uuid.UUID, delta int64) (*domain.Wallet, error) {
	mt, err := asMemTx(tx)
	if err != nil {
		return nil, err
	}
	w, ok := mt.store.wallets[walletID]
	if !ok || !w.Active {
		return nil, nil
	}
	next := mt.balanceOf(w) + delta
	if next < 0 {
		return nil, nil
	}
	mt.stagedBalances[walletID] = next
	cp := *w
	cp.Balance = next
	return &cp, nil
}

func (r *inMemoryWalletRepo) Deactivate(_ context.Context, tx pgx.Tx, id uuid.UUID) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	if _, ok := mt.store.wallets[id]; !ok {
		return fmt.Errorf("wallet not found: %s", id)
	}
	mt.deactivateWallets = append(mt.deactivateWallets, id)
	return nil
}

// --- Transaction repo ---

type inMemoryTransactionRepo struct {
	store *memStore
}

func newInMemoryTransactionRepo(store *memStore) *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{store: store}
}

func (r *inMemoryTransactionRepo) Append(_ context.Context, tx pgx.Tx, entry *domain.Transaction) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	mt.stagedEntries = append(mt.stagedEntries, *entry)
	return nil
}

func (r *inMemoryTransactionRepo) ListByWallet(_ context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var entries []domain.Transaction
	for _, e := range r.store.entries {
		if e.WalletID != walletID {
			continue
		}
		cp := e
		r.resolveEmailLocked(&cp)
		entries = append(entries, cp)
	}

	// Newest-first with a stable ID tiebreak, like the SQL ORDER BY.
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return bytes.Compare(entries[i].ID[:], entries[j].ID[:]) > 0
	})
	return entries, nil
}

func (r *inMemoryTransactionRepo) FindByWalletAndID(_ context.Context, walletID, id uuid.UUID) (*domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range r.store.entries {
		if e.ID == id && e.WalletID == walletID {
			cp := e
			r.resolveEmailLocked(&cp)
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) resolveEmailLocked(e *domain.Transaction) {
	if e.RelatedUserID == nil {
		return
	}
	if u, ok := r.store.users[*e.RelatedUserID]; ok {
		email := u.Email
		e.RelatedUserEmail = &email
	}
}
