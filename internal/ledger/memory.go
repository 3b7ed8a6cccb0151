package ledger

import (
	"context"
	"sync"

	"valcore/internal/domain"
)

// Memory is an in-process Gateway used as a test double and in dev mode. It
// enforces the same semantics the real cluster does: idempotent transfer ids,
// overdraft checks, and balances derived from postings.
type Memory struct {
	mu        sync.RWMutex
	accounts  map[domain.AccountID]Account
	transfers map[domain.TransferID]Transfer

	// CreateTransferCalls counts submissions so tests can assert the
	// tamper-rejection property (zero ledger calls).
	CreateTransferCalls int
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		accounts:  make(map[domain.AccountID]Account),
		transfers: make(map[domain.TransferID]Transfer),
	}
}

func (m *Memory) CreateAccounts(_ context.Context, accounts []Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range accounts {
		if _, exists := m.accounts[account.ID]; exists {
			continue
		}
		m.accounts[account.ID] = account
	}
	return nil
}

func (m *Memory) CreateTransfer(_ context.Context, transfer Transfer) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateTransferCalls++

	if _, exists := m.transfers[transfer.ID]; exists {
		return Outcome{Status: Exists}, nil
	}
	if transfer.Amount == 0 {
		return Outcome{Status: Rejected, Reason: ReasonInvalidAmount}, nil
	}
	debit, ok := m.accounts[transfer.Debit]
	if !ok {
		return Outcome{Status: Rejected, Reason: ReasonAccountNotFound}, nil
	}
	if _, ok := m.accounts[transfer.Credit]; !ok {
		return Outcome{Status: Rejected, Reason: ReasonAccountNotFound}, nil
	}
	if debit.Flags.DebitsMustNotExceedCredits {
		balance := m.balanceLocked(transfer.Debit)
		if balance.Net() < int64(transfer.Amount) {
			return Outcome{Status: Rejected, Reason: ReasonInsufficientFunds}, nil
		}
	}
	m.transfers[transfer.ID] = transfer
	return Outcome{Status: Accepted}, nil
}

func (m *Memory) LookupTransfer(_ context.Context, id domain.TransferID) (Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	transfer, ok := m.transfers[id]
	if !ok {
		return Transfer{}, ErrTransferNotFound
	}
	return transfer, nil
}

func (m *Memory) LookupBalance(_ context.Context, account domain.AccountID) (Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.accounts[account]; !ok {
		return Balance{}, ErrAccountNotFound
	}
	return m.balanceLocked(account), nil
}

// balanceLocked derives the balance from postings. Callers hold m.mu.
func (m *Memory) balanceLocked(account domain.AccountID) Balance {
	var b Balance
	for _, transfer := range m.transfers {
		if transfer.Credit == account {
			b.Credits += uint64(transfer.Amount)
		}
		if transfer.Debit == account {
			b.Debits += uint64(transfer.Amount)
		}
	}
	return b
}
