package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"

	"github.com/elys-network/liquidvault/internal/state"
	"github.com/elys-network/liquidvault/internal/types"
	"github.com/elys-network/liquidvault/internal/utils"
)

// Amounts travel as decimal strings of raw base units.
type amountRequest struct {
	Amount string `json:"amount"`
}

type exitRequest struct {
	Assets   string `json:"assets,omitempty"`
	Shares   string `json:"shares,omitempty"`
	Receiver string `json:"receiver"`
	Owner    string `json:"owner,omitempty"`
}

type queueRequest struct {
	Assets        string `json:"assets,omitempty"`
	Shares        string `json:"shares,omitempty"`
	Receiver      string `json:"receiver"`
	MaxPenaltyFee string `json:"max_penalty_fee"`
}

type approveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type requestView struct {
	types.WithdrawalRequest
	Status types.RequestStatus `json:"status"`
}

func viewOf(req types.WithdrawalRequest) requestView {
	return requestView{WithdrawalRequest: req, Status: req.Status()}
}

func callerOf(r *http.Request) (common.Address, error) {
	return parseAddress(CallerHeader, r.Header.Get(CallerHeader))
}

func parseAddress(name, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, errorsmod.Wrapf(types.ErrInvalidParams, "%s must be a hex address, got %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(name, s string) (sdkmath.Int, error) {
	amount, err := utils.ParseAmount(s)
	if err != nil {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInvalidParams, "%s: %v", name, err)
	}
	return amount, nil
}

func parseRequestID(s string) (common.Hash, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, errorsmod.Wrapf(types.ErrInvalidParams, "request id must be 32 hex bytes, got %q", s)
	}
	return common.BytesToHash(b), nil
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errorsmod.Wrapf(types.ErrInvalidParams, "malformed request body: %v", err)
	}
	return nil
}

// --- Vault views ---

func (ws *WebServer) handleVaultStatus(w http.ResponseWriter, r *http.Request) {
	status, err := ws.engine.Vault.Status(r.Context())
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, status)
}

func (ws *WebServer) handleVaultParameters(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.Vault.Parameters(r.Context()))
}

func (ws *WebServer) handleWithdrawFee(w http.ResponseWriter, r *http.Request) {
	assets, err := parseAmount("assets", r.URL.Query().Get("assets"))
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	fee, err := ws.engine.Vault.GetWithdrawFee(r.Context(), assets)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"assets": assets,
		"fee":    fee,
	})
}

func (ws *WebServer) handleLimits(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress("address", mux.Vars(r)["address"])
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	maxWithdraw, err := ws.engine.Vault.MaxWithdraw(ctx, owner)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	maxRedeem, err := ws.engine.Vault.MaxRedeem(ctx, owner)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"owner":        owner,
		"shares":       ws.engine.Shares.BalanceOf(ctx, owner),
		"max_withdraw": maxWithdraw,
		"max_redeem":   maxRedeem,
	})
}

// --- Vault operations ---

func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	var body exitRequest
	if err := decodeBody(r, &body); err != nil {
		ws.writeError(w, r, err)
		return
	}
	assets, err := parseAmount("assets", body.Assets)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	receiver, err := parseAddress("receiver", body.Receiver)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	shares, err := ws.engine.Vault.Deposit(r.Context(), caller, assets, receiver)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"assets": assets, "shares": shares})
}

// exitParties resolves receiver and owner; owner defaults to the caller.
func exitParties(caller common.Address, body exitRequest) (receiver, owner common.Address, err error) {
	if receiver, err = parseAddress("receiver", body.Receiver); err != nil {
		return
	}
	owner = caller
	if body.Owner != "" {
		owner, err = parseAddress("owner", body.Owner)
	}
	return
}

func (ws *WebServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	var body exitRequest
	if err := decodeBody(r, &body); err != nil {
		ws.writeError(w, r, err)
		return
	}
	assets, err := parseAmount("assets", body.Assets)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	receiver, owner, err := exitParties(caller, body)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	fee, err := ws.engine.Vault.GetWithdrawFee(ctx, assets)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	shares, err := ws.engine.Vault.Withdraw(ctx, caller, assets, receiver, owner)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"assets": assets, "shares": shares, "fee": fee})
}

func (ws *WebServer) handleRedeem(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	var body exitRequest
	if err := decodeBody(r, &body); err != nil {
		ws.writeError(w, r, err)
		return
	}
	shares, err := parseAmount("shares", body.Shares)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	receiver, owner, err := exitParties(caller, body)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	assets, err := ws.engine.Vault.Redeem(r.Context(), caller, shares, receiver, owner)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"assets": assets, "shares": shares})
}

func (ws *WebServer) handleDispatch(w http.ResponseWriter, r *http.Request) {
	ws.handleAmountOperation(w, r, "amount", func(caller common.Address, amount sdkmath.Int) error {
		return ws.engine.Vault.DispatchToRemote(r.Context(), caller, amount)
	})
}

func (ws *WebServer) handleRepatriate(w http.ResponseWriter, r *http.Request) {
	ws.handleAmountOperation(w, r, "amount", func(caller common.Address, amount sdkmath.Int) error {
		return ws.engine.Vault.RepatriateFromRemote(r.Context(), caller, amount)
	})
}

func (ws *WebServer) handleExchangeRate(w http.ResponseWriter, r *http.Request) {
	ws.handleAmountOperation(w, r, "rate", func(caller common.Address, rate sdkmath.Int) error {
		return ws.engine.Vault.UpdateExchangeRate(r.Context(), caller, rate)
	})
}

func (ws *WebServer) handleFulfill(w http.ResponseWriter, r *http.Request) {
	ws.handleAmountOperation(w, r, "amount", func(caller common.Address, amount sdkmath.Int) error {
		return ws.engine.Coordinator.FulfillExcessWithdraw(r.Context(), caller, amount)
	})
}

// handleAmountOperation runs an operation whose body is a single amount and answers with the vault status.
func (ws *WebServer) handleAmountOperation(w http.ResponseWriter, r *http.Request, field string, op func(caller common.Address, amount sdkmath.Int) error) {
	caller, err := callerOf(r)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	var raw map[string]string
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		ws.writeError(w, r, errorsmod.Wrapf(types.ErrInvalidParams, "malformed request body: %v", err))
		return
	}
	amount, err := parseAmount(field, raw[field])
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	if err := op(caller, amount); err != nil {
		ws.writeError(w, r, err)
		return
	}
	status, err := ws.engine.Vault.Status(r.Context())
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, status)
}

// --- Withdrawal queue ---

func (ws *WebServer) handleQueueSummary(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.Queue.Summary(r.Context()))
}

func (ws *WebServer) handlePendingRequests(w http.ResponseWriter, r *http.Request) {
	reqs := ws.engine.Queue.PendingRequests(r.Context())
	views := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		views = append(views, viewOf(req))
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"requests": views, "count": len(views)})
}

func (ws *WebServer) handleQueueRequest(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	var body queueRequest
	if err := decodeBody(r, &body); err != nil {
		ws.writeError(w, r, err)
		return
	}
	if (body.Assets == "") == (body.Shares == "") {
		ws.writeError(w, r, errorsmod.Wrap(types.ErrInvalidParams, "exactly one of assets or shares is required"))
		return
	}
	receiver, err := parseAddress("receiver", body.Receiver)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	maxFee, err := parseAmount("max_penalty_fee", body.MaxPenaltyFee)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	var id common.Hash
	if body.Assets != "" {
		assets, err := parseAmount("assets", body.Assets)
		if err != nil {
			ws.writeError(w, r, err)
			return
		}
		id, err = ws.engine.Queue.QueueExcessWithdrawByAssets(ctx, caller, assets, receiver, maxFee)
		if err != nil {
			ws.writeError(w, r, err)
			return
		}
	} else {
		shares, err := parseAmount("shares", body.Shares)
		if err != nil {
			ws.writeError(w, r, err)
			return
		}
		id, err = ws.engine.Queue.QueueExcessWithdrawByShares(ctx, caller, shares, receiver, maxFee)
		if err != nil {
			ws.writeError(w, r, err)
			return
		}
	}

	req, _ := ws.engine.Queue.Request(ctx, id)
	ws.writeJSONResponse(w, http.StatusCreated, viewOf(req))
}

func (ws *WebServer) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := parseRequestID(mux.Vars(r)["id"])
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	req, found := ws.engine.Queue.Request(r.Context(), id)
	if !found {
		ws.writeErrorResponse(w, http.StatusNotFound, "not_found", "request "+id.Hex()+" not found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, viewOf(req))
}

func (ws *WebServer) handleReceiverRequests(w http.ResponseWriter, r *http.Request) {
	receiver, err := parseAddress("address", mux.Vars(r)["address"])
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	reqs := ws.engine.Queue.RequestsByReceiver(r.Context(), receiver)
	views := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		views = append(views, viewOf(req))
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"receiver": receiver, "requests": views, "count": len(views)})
}

func (ws *WebServer) handleSetPenaltyFee(w http.ResponseWriter, r *http.Request) {
	id, err := parseRequestID(mux.Vars(r)["id"])
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	caller, err := callerOf(r)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	var raw map[string]string
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		ws.writeError(w, r, errorsmod.Wrapf(types.ErrInvalidParams, "malformed request body: %v", err))
		return
	}
	fee, err := parseAmount("fee", raw["fee"])
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	if err := ws.engine.Queue.SetPenaltyFee(ctx, caller, id, fee); err != nil {
		ws.writeError(w, r, err)
		return
	}
	req, _ := ws.engine.Queue.Request(ctx, id)
	ws.writeJSONResponse(w, http.StatusOK, viewOf(req))
}

func (ws *WebServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	id, err := parseRequestID(mux.Vars(r)["id"])
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	caller, err := callerOf(r)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	executed, err := ws.engine.Queue.ExecuteExcessWithdraw(r.Context(), caller, id)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, executed)
}

func (ws *WebServer) handleExecuteReceiver(w http.ResponseWriter, r *http.Request) {
	receiver, err := parseAddress("address", mux.Vars(r)["address"])
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	caller, err := callerOf(r)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	executed, err := ws.engine.Queue.ExecuteReceiverRequests(r.Context(), caller, receiver)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	if executed == nil {
		executed = []types.WithdrawalExecuted{}
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"executed": executed, "count": len(executed)})
}

// --- Roles and tokens ---

func (ws *WebServer) handleRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	account, err := parseAddress("address", vars["address"])
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	role := types.Role(vars["role"])
	var allowed bool
	switch role {
	case types.RoleRebalancer:
		allowed = ws.engine.Vault.IsAllowedRebalancer(ctx, account)
	case types.RoleFeeSetter:
		allowed = ws.engine.Queue.IsAllowedFeeSetter(ctx, account)
	case types.RoleFulfiller:
		allowed = ws.engine.Queue.IsAllowedFulfiller(ctx, account)
	default:
		ws.writeError(w, r, errorsmod.Wrapf(types.ErrInvalidParams, "unknown role %q", role))
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"role": role, "address": account, "allowed": allowed})
}

func (ws *WebServer) handleBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ledger, ok := ws.engine.Token(vars["symbol"])
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "not_found", "unknown token "+vars["symbol"])
		return
	}
	account, err := parseAddress("address", vars["address"])
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	balance := ledger.BalanceOf(r.Context(), account)
	formatted, _ := utils.FormatUnits(balance, ledger.Decimals())
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"token":     ledger.Symbol(),
		"address":   account,
		"balance":   balance,
		"formatted": formatted,
	})
}

func (ws *WebServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	ledger, ok := ws.engine.Token(symbol)
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "not_found", "unknown token "+symbol)
		return
	}
	caller, err := callerOf(r)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	var body approveRequest
	if err := decodeBody(r, &body); err != nil {
		ws.writeError(w, r, err)
		return
	}
	spender, err := parseAddress("spender", body.Spender)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", body.Amount)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	if err := ledger.Approve(ctx, caller, spender, amount); err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"token":     ledger.Symbol(),
		"owner":     caller,
		"spender":   spender,
		"allowance": ledger.Allowance(ctx, caller, spender),
	})
}

// --- Persistence and monitor ---

func queryLimit(r *http.Request, fallback int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			return parsed
		}
	}
	return fallback
}

func (ws *WebServer) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 20)
	snapshots, err := state.GetRecentSnapshots(limit)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
		"limit":     limit,
	})
}

func (ws *WebServer) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "invalid_params", "Invalid snapshot ID")
		return
	}
	if !state.Configured() {
		ws.writeError(w, r, state.ErrNotInitialized)
		return
	}
	snapshot, err := state.GetSnapshotByID(id)
	if err != nil {
		ws.logger.Error().Err(err).Int64("snapshotId", id).Msg("Failed to get snapshot")
		ws.writeErrorResponse(w, http.StatusNotFound, "not_found", "Snapshot not found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, snapshot)
}

func (ws *WebServer) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if ws.monitor == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "not_found", "Monitor is not running")
		return
	}
	latest, ok := ws.monitor.Latest()
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "not_found", "No monitor cycle has completed yet")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, latest)
}

func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	tag := r.URL.Query().Get("tag")
	events, err := state.GetRecentEvents(limit, tag)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []types.JournalEntry{}
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  limit,
		"tag":    tag,
	})
}

func (ws *WebServer) handleEventCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := state.GetEventKindCounts()
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"counts": counts})
}
