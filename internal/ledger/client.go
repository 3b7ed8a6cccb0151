package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"valcore/internal/domain"
)

// Client speaks JSON over HTTP to the clearing cluster. Each call carries a
// bounded timeout; a CreateTransfer timeout is resolved by re-querying the
// idempotency id, never by assuming failure, because the transfer may already
// be posted.
type Client struct {
	baseURL string
	http    *http.Client
	codes   CodeMap
	timeout time.Duration
}

// NewClient builds a gateway client for the given cluster address.
func NewClient(clusterAddr string, codes CodeMap, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: "http://" + clusterAddr,
		http:    &http.Client{Timeout: timeout},
		codes:   codes,
		timeout: timeout,
	}
}

type accountPayload struct {
	ID                         string `json:"id"`
	Ledger                     uint32 `json:"ledger"`
	Code                       string `json:"code"`
	DebitsMustNotExceedCredits bool   `json:"debits_must_not_exceed_credits"`
}

type transferPayload struct {
	ID     string `json:"id"`
	Debit  string `json:"debit_account_id"`
	Credit string `json:"credit_account_id"`
	Amount uint64 `json:"amount"`
	Ledger uint32 `json:"ledger"`
	Code   string `json:"code"`
}

type resultPayload struct {
	Result int `json:"result"`
}

type balancePayload struct {
	Credits uint64 `json:"credits_posted"`
	Debits  uint64 `json:"debits_posted"`
}

func (c *Client) CreateAccounts(ctx context.Context, accounts []Account) error {
	payload := make([]accountPayload, len(accounts))
	for i, a := range accounts {
		payload[i] = accountPayload{
			ID:                         a.ID.String(),
			Ledger:                     a.Ledger,
			Code:                       a.Code,
			DebitsMustNotExceedCredits: a.Flags.DebitsMustNotExceedCredits,
		}
	}
	var results []resultPayload
	if err := c.post(ctx, "/accounts", payload, &results); err != nil {
		return fmt.Errorf("create accounts: %w", err)
	}
	for i, r := range results {
		outcome := c.codes.Outcome(r.Result)
		if !outcome.Cleared() {
			return fmt.Errorf("create account %s: %s", accounts[i].ID, outcome.Reason)
		}
	}
	return nil
}

func (c *Client) CreateTransfer(ctx context.Context, transfer Transfer) (Outcome, error) {
	payload := transferPayload{
		ID:     transfer.ID.String(),
		Debit:  transfer.Debit.String(),
		Credit: transfer.Credit.String(),
		Amount: uint64(transfer.Amount),
		Ledger: transfer.Ledger,
		Code:   transfer.Code,
	}
	var result resultPayload
	err := c.post(ctx, "/transfers", payload, &result)
	if err != nil {
		if !isTimeout(err) {
			return Outcome{}, fmt.Errorf("create transfer: %w", err)
		}
		// The submission may have landed. Re-query before concluding
		// failure to avoid a false negative against a posted transfer.
		lookupCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if _, lookupErr := c.LookupTransfer(lookupCtx, transfer.ID); lookupErr == nil {
			return Outcome{Status: Exists}, nil
		}
		return Outcome{}, fmt.Errorf("create transfer timed out, state unresolved: %w", err)
	}
	return c.codes.Outcome(result.Result), nil
}

func (c *Client) LookupTransfer(ctx context.Context, id domain.TransferID) (Transfer, error) {
	var payload transferPayload
	if err := c.get(ctx, "/transfers/"+id.String(), &payload, ErrTransferNotFound); err != nil {
		return Transfer{}, err
	}
	debit, err := domain.ParseID128(payload.Debit)
	if err != nil {
		return Transfer{}, fmt.Errorf("lookup transfer: %w", err)
	}
	credit, err := domain.ParseID128(payload.Credit)
	if err != nil {
		return Transfer{}, fmt.Errorf("lookup transfer: %w", err)
	}
	return Transfer{
		ID:     id,
		Debit:  debit,
		Credit: credit,
		Amount: domain.Amount(payload.Amount),
		Ledger: payload.Ledger,
		Code:   payload.Code,
	}, nil
}

func (c *Client) LookupBalance(ctx context.Context, account domain.AccountID) (Balance, error) {
	var payload balancePayload
	if err := c.get(ctx, "/accounts/"+account.String()+"/balance", &payload, ErrAccountNotFound); err != nil {
		return Balance{}, err
	}
	return Balance{Credits: payload.Credits, Debits: payload.Debits}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out, nil)
}

func (c *Client) get(ctx context.Context, path string, out any, notFound error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out, notFound)
}

func (c *Client) do(req *http.Request, out any, notFound error) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound && notFound != nil:
		return notFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("ledger: %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
