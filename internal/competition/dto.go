// internal/competition/dto.go
package competition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Request is the wire payload broadcast to every registered solver for
// one round. The auction id and all amounts travel as decimal strings.
type Request struct {
	ID                             string    `json:"id"`
	Tokens                         []Token   `json:"tokens"`
	Orders                         []Order   `json:"orders"`
	Deadline                       time.Time `json:"deadline"`
	SurplusCapturingJitOrderOwners []string  `json:"surplusCapturingJitOrderOwners"`
}

// Token is one deduplicated token entry of the request. Price is nil
// for tokens that are trusted but have no reference price this round.
type Token struct {
	Address string  `json:"address"`
	Price   *string `json:"price"`
	Trusted bool    `json:"trusted"`
}

// Order mirrors one open order of the auction snapshot.
type Order struct {
	UID        string `json:"uid"`
	Owner      string `json:"owner"`
	SellToken  string `json:"sellToken"`
	BuyToken   string `json:"buyToken"`
	SellAmount string `json:"sellAmount"`
	BuyAmount  string `json:"buyAmount"`
}

// Response is the solver's answer: zero or more proposed solutions.
type Response struct {
	Solutions []Solution `json:"solutions"`
}

// Solution is the wire form of one proposed settlement. The contract is
// closed: decoding rejects unknown fields so that solver/driver version
// mismatches surface immediately instead of being silently tolerated.
type Solution struct {
	SolutionID        string                   `json:"solutionId"`
	Score             string                   `json:"score"`
	SubmissionAddress string                   `json:"submissionAddress"`
	Orders            map[string]TradedAmounts `json:"orders"`
	ClearingPrices    map[string]string        `json:"clearingPrices"`
	Gas               *uint64                  `json:"gas,omitempty"`
}

// TradedAmounts carries the effective sell/buy amounts for one order.
type TradedAmounts struct {
	SellAmount string `json:"sellAmount"`
	BuyAmount  string `json:"buyAmount"`
}

// DecodeResponse parses a solver response with a strict schema.
func DecodeResponse(r io.Reader) (*Response, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var resp Response
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode solver response: %w", err)
	}
	// Trailing garbage after the JSON document is a protocol violation.
	if err := dec.Decode(new(json.RawMessage)); err != io.EOF {
		return nil, fmt.Errorf("trailing data after solver response")
	}
	return &resp, nil
}

// DecodeRequest parses a competition request with a strict schema. Used
// by solver-side test stubs and kept symmetric with DecodeResponse.
func DecodeRequest(r io.Reader) (*Request, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var req Request
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decode competition request: %w", err)
	}
	return &req, nil
}

// Encode serializes the request for transport.
func (r *Request) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode competition request: %w", err)
	}
	return buf.Bytes(), nil
}
