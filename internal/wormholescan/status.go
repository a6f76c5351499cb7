package wormholescan

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/wormhole-foundation/wormhole/sdk/vaa"

	borrowlend "github.com/wormhole-foundation/example-cross-chain-borrow-lend"
)

// Operation is one cross-chain message as reported by /api/v1/operations.
type Operation struct {
	ID             string `json:"id"`
	EmitterChain   uint16 `json:"emitterChain"`
	EmitterAddress struct {
		Hex string `json:"hex"`
	} `json:"emitterAddress"`
	Sequence    string         `json:"sequence"`
	VAA         *OperationVAA  `json:"vaa,omitempty"`
	SourceChain *OperationLeg  `json:"sourceChain,omitempty"`
	TargetChain *OperationLeg  `json:"targetChain,omitempty"`
	Content     map[string]any `json:"content,omitempty"`
}

// OperationVAA carries the signed VAA when the guardians have produced it.
type OperationVAA struct {
	Raw string `json:"raw"`
}

// OperationLeg describes one side of an operation.
type OperationLeg struct {
	ChainID     uint16 `json:"chainId"`
	Timestamp   string `json:"timestamp"`
	Status      string `json:"status"`
	Transaction struct {
		TxHash string `json:"txHash"`
	} `json:"transaction"`
}

// Operations lists the operations originating from txHash.
func (c *Client) Operations(ctx context.Context, txHash string) ([]Operation, error) {
	var resp struct {
		Operations []Operation `json:"operations"`
	}
	q := url.Values{"txHash": []string{txHash}}
	if err := c.get(ctx, "/api/v1/operations", q, &resp); err != nil {
		return nil, err
	}
	return resp.Operations, nil
}

// TransferStatus summarises a cross-chain transfer.
type TransferStatus struct {
	SourceChain  vaa.ChainID `json:"sourceChain"`
	TxHash       string      `json:"txHash"`
	Sequence     uint64      `json:"sequence"`
	Emitter      string      `json:"emitter,omitempty"`
	SourceStatus string      `json:"sourceStatus"`
	VAASigned    bool        `json:"vaaSigned"`
	TargetChain  vaa.ChainID `json:"targetChain,omitempty"`
	TargetStatus string      `json:"targetStatus,omitempty"`
	TargetTxHash string      `json:"targetTxHash,omitempty"`
}

// Status returns the status of the first message emitted by txHash on chain.
func (c *Client) Status(ctx context.Context, chain vaa.ChainID, txHash string) (*TransferStatus, error) {
	if txHash == "" {
		return nil, fmt.Errorf("%w: transaction hash is required", borrowlend.ErrConfig)
	}

	ops, err := c.Operations(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("get operations for %s: %w", txHash, err)
	}

	for _, op := range ops {
		if op.EmitterChain != uint16(chain) {
			continue
		}
		return op.status(chain, txHash), nil
	}
	return nil, fmt.Errorf("%w: no message from %s in transaction %s", borrowlend.ErrNotFound, chain, txHash)
}

func (op *Operation) status(chain vaa.ChainID, txHash string) *TransferStatus {
	st := &TransferStatus{
		SourceChain:  chain,
		TxHash:       txHash,
		Emitter:      op.EmitterAddress.Hex,
		SourceStatus: "pending",
		VAASigned:    op.VAA != nil && op.VAA.Raw != "",
	}
	if seq, err := strconv.ParseUint(op.Sequence, 10, 64); err == nil {
		st.Sequence = seq
	}
	if op.SourceChain != nil && op.SourceChain.Status != "" {
		st.SourceStatus = op.SourceChain.Status
	}
	if op.TargetChain != nil {
		st.TargetChain = vaa.ChainID(op.TargetChain.ChainID)
		st.TargetStatus = op.TargetChain.Status
		st.TargetTxHash = op.TargetChain.Transaction.TxHash
	}
	return st
}

// Delivered reports whether the target chain has processed the message.
func (s *TransferStatus) Delivered() bool {
	return strings.EqualFold(s.TargetStatus, "completed")
}

// Info renders the status as human readable text.
func (s *TransferStatus) Info() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source chain: %s, transaction %s\n", s.SourceChain, s.TxHash)
	fmt.Fprintf(&b, "Sequence: %d (%s)\n", s.Sequence, s.SourceStatus)
	if s.VAASigned {
		b.WriteString("VAA: signed\n")
	} else {
		b.WriteString("VAA: not yet signed\n")
	}
	if s.TargetChain == vaa.ChainIDUnset {
		b.WriteString("Target chain: unknown")
		return b.String()
	}
	status := s.TargetStatus
	if status == "" {
		status = "pending"
	}
	fmt.Fprintf(&b, "Target chain: %s, status %s", s.TargetChain, status)
	if s.TargetTxHash != "" {
		fmt.Fprintf(&b, ", transaction %s", s.TargetTxHash)
	}
	if s.Delivered() {
		b.WriteString("\nDelivered: yes")
	} else {
		b.WriteString("\nDelivered: no")
	}
	return b.String()
}
