package httpservice

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ephesafe/ephesafed/internal/core/application"
	"github.com/ephesafe/ephesafed/internal/core/ports"
	"github.com/ephesafe/ephesafed/pkg/vaulterrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
)

type handler struct {
	appSvc   application.Service
	adminSvc application.AdminService
	custody  ports.CustodyService
}

type mintSafeRequest struct {
	From               string   `json:"from"`
	Owner              string   `json:"owner"`
	Issuer             string   `json:"issuer"`
	Expiry             int64    `json:"expiry"`
	Amount             string   `json:"amount"`
	Value              string   `json:"value"`
	TokenAddress       string   `json:"token_address"`
	TokenUri           string   `json:"token_uri"`
	Metadata           string   `json:"metadata"`
	MultiSafeAddresses []string `json:"multi_safe_addresses"`
	ApprovalsRequired  uint64   `json:"approvals_required"`
}

func (h *handler) mintSafe(w http.ResponseWriter, r *http.Request) {
	var req mintSafeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.INVALID_CONFIGURATION.Wrap(err))
		return
	}

	caller, err := parseAddress(req.From, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := parseAddress(req.Owner, "owner")
	if err != nil {
		writeError(w, err)
		return
	}
	issuer, err := parseOptionalAddress(req.Issuer, "issuer")
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := parseOptionalAddress(req.TokenAddress, "token_address")
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		writeError(w, err)
		return
	}
	value, err := parseOptionalAmount(req.Value, "value")
	if err != nil {
		writeError(w, err)
		return
	}
	authorizers := make([]common.Address, 0, len(req.MultiSafeAddresses))
	for _, addr := range req.MultiSafeAddresses {
		parsed, err := parseAddress(addr, "multi_safe_addresses")
		if err != nil {
			writeError(w, err)
			return
		}
		authorizers = append(authorizers, parsed)
	}

	safeId, err := h.appSvc.MintSafe(r.Context(), application.MintRequest{
		Caller:             caller,
		Owner:              owner,
		Issuer:             issuer,
		Expiry:             req.Expiry,
		Amount:             amount,
		Value:              value,
		TokenAddress:       token,
		TokenUri:           req.TokenUri,
		Metadata:           req.Metadata,
		MultiSafeAddresses: authorizers,
		ApprovalsRequired:  req.ApprovalsRequired,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"safe_id": safeId})
}

func (h *handler) listSafes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if owner := query.Get("owner"); owner != "" {
		addr, err := parseAddress(owner, "owner")
		if err != nil {
			writeError(w, err)
			return
		}
		safes, err := h.appSvc.GetAllSafesOfOwner(r.Context(), addr)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"safes": safes})
		return
	}
	if issuer := query.Get("issuer"); issuer != "" {
		addr, err := parseAddress(issuer, "issuer")
		if err != nil {
			writeError(w, err)
			return
		}
		safes, err := h.appSvc.GetIssuedSafes(r.Context(), addr)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"safes": safes})
		return
	}
	if authorizer := query.Get("authorizer"); authorizer != "" {
		addr, err := parseAddress(authorizer, "authorizer")
		if err != nil {
			writeError(w, err)
			return
		}
		safes, err := h.appSvc.GetAllMultiSafeAuthorityTokens(r.Context(), addr)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"safes": safes})
		return
	}

	ids, err := h.appSvc.GetAllSafes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"safe_ids": ids})
}

func (h *handler) getSafe(w http.ResponseWriter, r *http.Request) {
	safeId, err := parseSafeId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	info, err := h.appSvc.GetSafeInfo(r.Context(), safeId)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type callerRequest struct {
	From string `json:"from"`
}

func (h *handler) claimSafe(w http.ResponseWriter, r *http.Request) {
	safeId, err := parseSafeId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.INVALID_CONFIGURATION.Wrap(err))
		return
	}
	caller, err := parseAddress(req.From, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.appSvc.ClaimSafe(r.Context(), safeId, caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"safe_id": safeId})
}

func (h *handler) claimSafeAtAddress(w http.ResponseWriter, r *http.Request) {
	safeId, err := parseSafeId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		From         string `json:"from"`
		ClaimAddress string `json:"claim_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.INVALID_CONFIGURATION.Wrap(err))
		return
	}
	caller, err := parseAddress(req.From, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	claimAddr, err := parseAddress(req.ClaimAddress, "claim_address")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.appSvc.ClaimSafeAtAddress(r.Context(), safeId, caller, claimAddr); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"safe_id": safeId})
}

func (h *handler) destroySafe(w http.ResponseWriter, r *http.Request) {
	safeId, err := parseSafeId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.INVALID_CONFIGURATION.Wrap(err))
		return
	}
	caller, err := parseAddress(req.From, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.appSvc.DestroySafe(r.Context(), safeId, caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"safe_id": safeId})
}

func (h *handler) emergencyUnlockState(w http.ResponseWriter, r *http.Request) {
	safeId, err := parseSafeId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := h.appSvc.EmergencyUnlockState(r.Context(), safeId)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *handler) approveEmergencyUnlock(w http.ResponseWriter, r *http.Request) {
	safeId, err := parseSafeId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		From      string `json:"from"`
		Recipient string `json:"recipient"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.INVALID_CONFIGURATION.Wrap(err))
		return
	}
	caller, err := parseAddress(req.From, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	recipient, err := parseAddress(req.Recipient, "recipient")
	if err != nil {
		writeError(w, err)
		return
	}
	info, err := h.appSvc.ApproveOrExecuteEmergencyUnlock(
		r.Context(), safeId, caller, recipient,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *handler) updateTokenUri(w http.ResponseWriter, r *http.Request) {
	safeId, err := parseSafeId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		From     string `json:"from"`
		TokenUri string `json:"token_uri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.INVALID_CONFIGURATION.Wrap(err))
		return
	}
	caller, err := parseAddress(req.From, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.appSvc.UpdateTokenUri(r.Context(), safeId, caller, req.TokenUri); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"safe_id": safeId})
}

func (h *handler) updateTokenIssuer(w http.ResponseWriter, r *http.Request) {
	safeId, err := parseSafeId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		From   string `json:"from"`
		Issuer string `json:"issuer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.INVALID_CONFIGURATION.Wrap(err))
		return
	}
	caller, err := parseAddress(req.From, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	issuer, err := parseAddress(req.Issuer, "issuer")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.appSvc.UpdateTokenIssuer(r.Context(), safeId, caller, issuer); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"safe_id": safeId})
}

func (h *handler) addAuthorizer(w http.ResponseWriter, r *http.Request) {
	safeId, err := parseSafeId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		From       string `json:"from"`
		Authorizer string `json:"authorizer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.INVALID_CONFIGURATION.Wrap(err))
		return
	}
	caller, err := parseAddress(req.From, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	authorizer, err := parseAddress(req.Authorizer, "authorizer")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.appSvc.AddMultiSafeAuthorizer(
		r.Context(), safeId, caller, authorizer,
	); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"safe_id": safeId})
}

func (h *handler) pause(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.INVALID_CONFIGURATION.Wrap(err))
		return
	}
	caller, err := parseAddress(req.From, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.adminSvc.Pause(r.Context(), caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paused": true})
}

func (h *handler) unpause(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.INVALID_CONFIGURATION.Wrap(err))
		return
	}
	caller, err := parseAddress(req.From, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.adminSvc.Unpause(r.Context(), caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paused": false})
}

type roleRequest struct {
	From    string `json:"from"`
	Role    string `json:"role"`
	Address string `json:"address"`
}

func (h *handler) grantRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.INVALID_CONFIGURATION.Wrap(err))
		return
	}
	caller, err := parseAddress(req.From, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	addr, err := parseAddress(req.Address, "address")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.adminSvc.GrantRole(r.Context(), caller, req.Role, addr); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role": req.Role, "address": addr.Hex()})
}

func (h *handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.INVALID_CONFIGURATION.Wrap(err))
		return
	}
	caller, err := parseAddress(req.From, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	addr, err := parseAddress(req.Address, "address")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.adminSvc.RevokeRole(r.Context(), caller, req.Role, addr); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role": req.Role, "address": addr.Hex()})
}

func (h *handler) hasRole(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	addr, err := parseAddress(query.Get("address"), "address")
	if err != nil {
		writeError(w, err)
		return
	}
	hasRole, err := h.adminSvc.HasRole(r.Context(), query.Get("role"), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"has_role": hasRole})
}

func (h *handler) registryInfo(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminSvc.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type faucetRequest struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
}

func (h *handler) faucetDeposit(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.INVALID_CONFIGURATION.Wrap(err))
		return
	}
	addr, err := parseAddress(req.Address, "address")
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := parseOptionalAddress(req.Token, "token")
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.custody.Deposit(r.Context(), addr, token, amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance": h.custody.BalanceOf(r.Context(), addr, token).Dec(),
	})
}

func (h *handler) faucetApprove(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.INVALID_CONFIGURATION.Wrap(err))
		return
	}
	owner, err := parseAddress(req.Address, "address")
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := parseOptionalAddress(req.Token, "token")
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.custody.Approve(r.Context(), owner, token, amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"allowance": amount.Dec()})
}

func parseSafeId(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, vaulterrors.INVALID_CONFIGURATION.New("invalid safe id")
	}
	return id, nil
}

func parseAddress(value, field string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, vaulterrors.INVALID_CONFIGURATION.New(
			"invalid address in %s", field,
		)
	}
	return common.HexToAddress(value), nil
}

// parseOptionalAddress treats an empty string as the zero address.
func parseOptionalAddress(value, field string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	return parseAddress(value, field)
}

func parseAmount(value, field string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, vaulterrors.INVALID_CONFIGURATION.New(
			"invalid amount in %s", field,
		)
	}
	return amount, nil
}

func parseOptionalAmount(value, field string) (*uint256.Int, error) {
	if value == "" {
		return nil, nil
	}
	return parseAmount(value, field)
}
