package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"auctiond/crypto"
	"auctiond/native/auction"
	"auctiond/native/token"
)

const (
	codeAuctionInvalidParams = -32021
	codeAuctionNotFound      = -32022
	codeAuctionForbidden     = -32023
	codeAuctionConflict      = -32024
	codeAuctionInternal      = -32025
)

type adminParams struct {
	Caller   string `json:"caller"`
	AdminKey string `json:"adminKey"`
}

type initializeParams struct {
	Caller             string `json:"caller"`
	CallerTokenAccount string `json:"callerTokenAccount"`
	Name               string `json:"name"`
	Price              uint64 `json:"price"`
	PriceIncrement     uint64 `json:"priceIncrement"`
	StartTime          int64  `json:"startTime"`
	EndTime            int64  `json:"endTime"`
}

type bidParams struct {
	Name               string `json:"name"`
	Caller             string `json:"caller"`
	CallerTokenAccount string `json:"callerTokenAccount"`
	Amount             uint64 `json:"amount"`
}

type bidCreateParams struct {
	Name   string `json:"name"`
	Caller string `json:"caller"`
	Amount uint64 `json:"amount"`
}

type closeParams struct {
	Name               string `json:"name"`
	Caller             string `json:"caller"`
	CallerTokenAccount string `json:"callerTokenAccount"`
}

type nameParams struct {
	Name string `json:"name"`
}

type listEventsParams struct {
	After uint64 `json:"after,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type auctionJSON struct {
	Name               string `json:"name"`
	Amount             uint64 `json:"amount"`
	AmountIncrement    uint64 `json:"amountIncrement"`
	StartTime          int64  `json:"startTime"`
	EndTime            int64  `json:"endTime"`
	Phase              string `json:"phase"`
	Leader             string `json:"leader"`
	LeaderTokenAccount string `json:"leaderTokenAccount"`
	RecordAddress      string `json:"recordAddress"`
	EscrowAddress      string `json:"escrowAddress"`
}

// formatAuctionJSON renders a record for the wire. The phase is evaluated
// against the node's clock so the view matches what a transition would see.
func formatAuctionJSON(a *auction.Auction, now int64) auctionJSON {
	recordAddr, _ := auction.DeriveAuctionAddress(a.Name)
	escrowAddr := auction.DeriveProceedsAddress(recordAddr)
	return auctionJSON{
		Name:               a.Name,
		Amount:             a.Amount,
		AmountIncrement:    a.AmountIncrement,
		StartTime:          a.StartTime,
		EndTime:            a.EndTime,
		Phase:              a.PhaseAt(now).String(),
		Leader:             formatBech32Address(a.Leader),
		LeaderTokenAccount: formatBech32Address(a.LeaderTokenAccount),
		RecordAddress:      formatBech32Address(recordAddr),
		EscrowAddress:      formatBech32Address(escrowAddr),
	}
}

func (s *Server) handleAuctionBootstrap(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, ok := decodeAdminParams(w, req)
	if !ok {
		return
	}
	caller, adminKey, ok := parseAdminAddresses(w, req, params)
	if !ok {
		return
	}
	if err := s.node.AuctionBootstrap(caller, adminKey); err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleAuctionRotateAdmin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, ok := decodeAdminParams(w, req)
	if !ok {
		return
	}
	caller, adminKey, ok := parseAdminAddresses(w, req, params)
	if !ok {
		return
	}
	if err := s.node.AuctionRotateAdmin(caller, adminKey); err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func decodeAdminParams(w http.ResponseWriter, req *RPCRequest) (adminParams, bool) {
	var params adminParams
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", "exactly one parameter object expected")
		return params, false
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return params, false
	}
	return params, true
}

func parseAdminAddresses(w http.ResponseWriter, req *RPCRequest, params adminParams) ([20]byte, [20]byte, bool) {
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return caller, caller, false
	}
	adminKey, err := parseBech32Address(params.AdminKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return caller, adminKey, false
	}
	return caller, adminKey, true
}

func (s *Server) handleAuctionInitialize(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params initializeParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	callerTokenAccount, err := parseBech32Address(params.CallerTokenAccount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", "name required")
		return
	}
	opened, err := s.node.AuctionInitialize(caller, callerTokenAccount, name, params.Price, params.PriceIncrement, params.StartTime, params.EndTime)
	if err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAuctionJSON(opened, s.node.Now()))
}

func (s *Server) handleAuctionBid(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params bidParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	callerTokenAccount, err := parseBech32Address(params.CallerTokenAccount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	settled, err := s.node.AuctionBid(params.Name, caller, callerTokenAccount, params.Amount)
	if err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAuctionJSON(settled, s.node.Now()))
}

func (s *Server) handleAuctionBidCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params bidCreateParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	settled, err := s.node.AuctionBidCreate(params.Name, caller, params.Amount)
	if err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAuctionJSON(settled, s.node.Now()))
}

func (s *Server) handleAuctionClose(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params closeParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	callerTokenAccount, err := parseBech32Address(params.CallerTokenAccount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.AuctionClose(params.Name, caller, callerTokenAccount); err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleAuctionGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params nameParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	record, ok, err := s.node.AuctionGet(params.Name)
	if err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	if !ok {
		writeAuctionError(w, req.ID, auction.ErrAuctionNotFound)
		return
	}
	writeResult(w, req.ID, formatAuctionJSON(record, s.node.Now()))
}

func (s *Server) handleAuctionAdmin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	admin, ok, err := s.node.AdminAddress()
	if err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	if !ok {
		writeAuctionError(w, req.ID, auction.ErrAdminNotConfigured)
		return
	}
	writeResult(w, req.ID, map[string]string{"adminKey": formatBech32Address(admin)})
}

func (s *Server) handleAuctionListEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listEventsParams
	if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", "at most one parameter object expected")
		return
	}
	if len(req.Params) == 1 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	writeResult(w, req.ID, s.node.Events(params.After, params.Limit))
}

func parseBech32Address(addr string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return out, fmt.Errorf("address required")
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, err
	}
	if decoded.Prefix() != crypto.AuctionPrefix {
		return out, fmt.Errorf("unexpected address prefix %q", decoded.Prefix())
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func formatBech32Address(addr [20]byte) string {
	return crypto.NewAddress(crypto.AuctionPrefix, addr[:]).String()
}

func writeAuctionError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeAuctionInternal
	message := "internal_error"
	data := err.Error()
	switch {
	case errors.Is(err, auction.ErrAuctionNotFound):
		status = http.StatusNotFound
		code = codeAuctionNotFound
		message = "not_found"
	case errors.Is(err, auction.ErrNotAdmin) || errors.Is(err, auction.ErrNotUpgradeAuthority) || errors.Is(err, token.ErrUnauthorized):
		status = http.StatusForbidden
		code = codeAuctionForbidden
		message = "forbidden"
	case errors.Is(err, auction.ErrStartAfterEndTimestamp) ||
		errors.Is(err, auction.ErrEndTimestampAlreadyPassed) ||
		errors.Is(err, auction.ErrNameTooLong) ||
		errors.Is(err, auction.ErrInvalidCalculation):
		status = http.StatusBadRequest
		code = codeAuctionInvalidParams
		message = "invalid_params"
	case errors.Is(err, auction.ErrAuctionExists) ||
		errors.Is(err, auction.ErrAlreadyInitialized) ||
		errors.Is(err, auction.ErrAdminNotConfigured) ||
		errors.Is(err, auction.ErrAuctionNotStarted) ||
		errors.Is(err, auction.ErrAuctionEnded) ||
		errors.Is(err, auction.ErrAuctionNotFinished) ||
		errors.Is(err, auction.ErrBidTooLow) ||
		errors.Is(err, token.ErrInsufficient) ||
		errors.Is(err, token.ErrAccountNotFound):
		status = http.StatusConflict
		code = codeAuctionConflict
		message = "conflict"
	}
	writeError(w, status, id, code, message, data)
}
