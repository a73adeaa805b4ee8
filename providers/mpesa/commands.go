package mpesa

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/transport"
)

const (
	CommandAccountBalance         = "AccountBalance"
	CommandTransactionStatusQuery = "TransactionStatusQuery"

	// IdentifierTypeShortcode marks PartyA as an organisation shortcode.
	IdentifierTypeShortcode = "4"
)

type AccountBalanceCommand struct {
	Initiator          string `json:"Initiator"`
	SecurityCredential string `json:"SecurityCredential"`
	CommandID          string `json:"CommandID"`
	PartyA             string `json:"PartyA"`
	IdentifierType     string `json:"IdentifierType"`
	Remarks            string `json:"Remarks"`
	QueueTimeOutURL    string `json:"QueueTimeOutURL"`
	ResultURL          string `json:"ResultURL"`
}

type TransactionStatusCommand struct {
	Initiator          string `json:"Initiator"`
	SecurityCredential string `json:"SecurityCredential"`
	CommandID          string `json:"CommandID"`
	TransactionID      string `json:"TransactionID"`
	PartyA             string `json:"PartyA"`
	IdentifierType     string `json:"IdentifierType"`
	Remarks            string `json:"Remarks"`
	Occasion           string `json:"Occasion"`
	QueueTimeOutURL    string `json:"QueueTimeOutURL"`
	ResultURL          string `json:"ResultURL"`
}

// CommandAcknowledgement is the synchronous answer to a queued command.
type CommandAcknowledgement struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
	ErrorCode                string `json:"errorCode"`
	ErrorMessage             string `json:"errorMessage"`
}

// RequestBalanceCheck queues an AccountBalance command. The returned value
// only confirms the request was accepted; the balance arrives on the
// result callback.
func (a *Adapter) RequestBalanceCheck(ctx context.Context, session core.Session, account core.Account) (core.BalanceCheckRequest, error) {
	sess, err := sessionFrom(session)
	if err != nil {
		return core.BalanceCheckRequest{}, err
	}
	if err := a.requireInitiator(sess); err != nil {
		return core.BalanceCheckRequest{}, err
	}
	resultURL, timeoutURL, err := a.callbackURLs(ctx, account, core.CallbackSurfaceBalanceResult)
	if err != nil {
		return core.BalanceCheckRequest{}, err
	}
	credential, err := a.credentials.Generate(ctx, sess.environment, sess.initiator.password)
	if err != nil {
		return core.BalanceCheckRequest{}, err
	}

	command := AccountBalanceCommand{
		Initiator:          sess.initiator.name,
		SecurityCredential: credential,
		CommandID:          CommandAccountBalance,
		PartyA:             sess.initiator.shortcode,
		IdentifierType:     IdentifierTypeShortcode,
		Remarks:            a.config.Remarks,
		QueueTimeOutURL:    timeoutURL,
		ResultURL:          resultURL,
	}
	return a.submit(ctx, sess, AccountBalancePath, core.BalanceCheckKindAccountBalance, "", command)
}

// RequestTransactionStatus queues a TransactionStatusQuery for one
// provider transaction id.
func (a *Adapter) RequestTransactionStatus(
	ctx context.Context,
	session core.Session,
	account core.Account,
	transactionID string,
) (core.BalanceCheckRequest, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return core.BalanceCheckRequest{}, core.NewConfigurationError("mpesa: transaction id is required", nil)
	}
	sess, err := sessionFrom(session)
	if err != nil {
		return core.BalanceCheckRequest{}, err
	}
	if err := a.requireInitiator(sess); err != nil {
		return core.BalanceCheckRequest{}, err
	}
	resultURL, timeoutURL, err := a.callbackURLs(ctx, account, core.CallbackSurfaceStatusResult)
	if err != nil {
		return core.BalanceCheckRequest{}, err
	}
	credential, err := a.credentials.Generate(ctx, sess.environment, sess.initiator.password)
	if err != nil {
		return core.BalanceCheckRequest{}, err
	}

	command := TransactionStatusCommand{
		Initiator:          sess.initiator.name,
		SecurityCredential: credential,
		CommandID:          CommandTransactionStatusQuery,
		TransactionID:      transactionID,
		PartyA:             sess.initiator.shortcode,
		IdentifierType:     IdentifierTypeShortcode,
		Remarks:            a.config.Remarks,
		Occasion:           transactionID,
		QueueTimeOutURL:    timeoutURL,
		ResultURL:          resultURL,
	}
	return a.submit(ctx, sess, TransactionStatusPath, core.BalanceCheckKindTransactionStatus, transactionID, command)
}

func (a *Adapter) submit(
	ctx context.Context,
	sess *Session,
	path string,
	kind core.BalanceCheckKind,
	transactionID string,
	command any,
) (core.BalanceCheckRequest, error) {
	endpoint, err := transport.JoinURL(sess.baseURL, path)
	if err != nil {
		return core.BalanceCheckRequest{}, core.NewConfigurationError("mpesa: command url is invalid", nil)
	}
	req, err := transport.NewJSONRequest(http.MethodPost, endpoint, command)
	if err != nil {
		return core.BalanceCheckRequest{}, err
	}
	req.Headers["Authorization"] = sess.token.AuthorizationHeader()

	requestedAt := a.now().UTC()
	res, err := a.client.Do(ctx, req)
	if err != nil {
		return core.BalanceCheckRequest{}, core.NewFetchFailure(a.providerKey, 0, "", err)
	}

	ack := CommandAcknowledgement{}
	if decodeErr := json.Unmarshal(res.Body, &ack); decodeErr != nil && res.OK() {
		return core.BalanceCheckRequest{}, core.NewFetchFailure(a.providerKey, res.StatusCode, string(res.Body), decodeErr)
	}
	request := core.BalanceCheckRequest{
		ProviderKey:              a.providerKey,
		Kind:                     kind,
		CorrelationID:            strings.TrimSpace(ack.ConversationID),
		OriginatorConversationID: strings.TrimSpace(ack.OriginatorConversationID),
		TransactionID:            transactionID,
		ResponseCode:             strings.TrimSpace(ack.ResponseCode),
		ResponseDescription:      strings.TrimSpace(ack.ResponseDescription),
		RequestedAt:              requestedAt,
	}
	request.Acknowledged = res.OK() && request.ResponseCode == acknowledgedResponseCode && request.CorrelationID != ""
	if !request.Acknowledged {
		body := string(res.Body)
		if ack.ErrorMessage != "" {
			body = ack.ErrorCode + " " + ack.ErrorMessage
		}
		return request, core.NewFetchFailure(a.providerKey, res.StatusCode, body, nil)
	}

	a.logger.WithContext(ctx).Info("mpesa command acknowledged",
		"provider_key", a.providerKey,
		"kind", string(kind),
		"correlation_id", request.CorrelationID,
	)
	return request, nil
}

func (a *Adapter) callbackURLs(ctx context.Context, account core.Account, surface core.CallbackSurface) (string, string, error) {
	resultURL, err := a.callbacks.ResolveCallbackURL(ctx, core.CallbackURLResolveRequest{
		ProviderKey: a.providerKey,
		AccountID:   account.ID,
		Surface:     surface,
	})
	if err != nil {
		return "", "", err
	}
	timeoutURL, err := a.callbacks.ResolveCallbackURL(ctx, core.CallbackURLResolveRequest{
		ProviderKey: a.providerKey,
		AccountID:   account.ID,
		Surface:     core.CallbackSurfaceTimeout,
	})
	if err != nil {
		return "", "", err
	}
	return resultURL, timeoutURL, nil
}

func (a *Adapter) requireInitiator(sess *Session) error {
	missing := []string{}
	if sess.initiator.name == "" {
		missing = append(missing, core.CredentialInitiatorName)
	}
	if sess.initiator.password == "" {
		missing = append(missing, core.CredentialInitiatorPassword)
	}
	if sess.initiator.shortcode == "" {
		missing = append(missing, core.CredentialShortcode)
	}
	if len(missing) == 0 {
		return nil
	}
	return core.NewConfigurationError("mpesa: credentials missing initiator fields", map[string]any{
		"provider_key": a.providerKey,
		"missing":      strings.Join(missing, ","),
	})
}
