// Package api implements the client-side API for code wishing to talk
// to an aici server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/DataSpeaksTech/aici/envconfig"
)

// Client talks to the aici HTTP API. Use [ClientFromEnvironment] or
// [NewClient] to create one.
type Client struct {
	base *url.URL
	http *http.Client
}

func NewClient(base *url.URL, http *http.Client) *Client {
	return &Client{
		base: base,
		http: http,
	}
}

// ClientFromEnvironment creates a client for the server named by
// AICI_HOST.
func ClientFromEnvironment() (*Client, error) {
	return NewClient(envconfig.Host(), http.DefaultClient), nil
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiError := StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	if err := json.Unmarshal(body, &apiError); err != nil {
		// Use the full body as the message if we fail to decode a response.
		apiError.ErrorMessage = string(body)
	}

	return apiError
}

func (c *Client) do(ctx context.Context, method, path string, reqData, respData any) error {
	var reqBody io.Reader
	if reqData != nil {
		bts, err := json.Marshal(reqData)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(bts)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reqBody)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if err := checkError(response, body); err != nil {
		return err
	}

	if respData != nil && len(body) > 0 {
		if err := json.Unmarshal(body, respData); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func (c *Client) Tokenize(ctx context.Context, req *TokenizeRequest) (*TokenizeResponse, error) {
	var resp TokenizeResponse
	if err := c.do(ctx, http.MethodPost, "/v1/tokenize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Detokenize(ctx context.Context, req *DetokenizeRequest) (*DetokenizeResponse, error) {
	var resp DetokenizeResponse
	if err := c.do(ctx, http.MethodPost, "/v1/detokenize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateSequence starts a new sequence under the constraint req names.
func (c *Client) CreateSequence(ctx context.Context, req *CreateRequest) (*SequenceResponse, error) {
	var resp SequenceResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sequences", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sequence returns the current state of sequence id.
func (c *Client) Sequence(ctx context.Context, id string) (*SequenceResponse, error) {
	var resp SequenceResponse
	if err := c.do(ctx, http.MethodGet, "/v1/sequences/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Fork copies sequence id into a new, independent sequence.
func (c *Client) Fork(ctx context.Context, id string) (*SequenceResponse, error) {
	var resp SequenceResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sequences/"+url.PathEscape(id)+"/fork", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Step(ctx context.Context, id string) (*StepResponse, error) {
	var resp StepResponse
	if err := c.do(ctx, http.MethodGet, "/v1/sequences/"+url.PathEscape(id)+"/step", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Commit(ctx context.Context, id string, token int32) (*SequenceResponse, error) {
	var resp SequenceResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sequences/"+url.PathEscape(id)+"/commit", &CommitRequest{Token: token}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Drop(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/sequences/"+url.PathEscape(id), nil, nil)
}

func (c *Client) GetVar(ctx context.Context, name string) (*VarResponse, error) {
	var resp VarResponse
	if err := c.do(ctx, http.MethodGet, "/v1/vars/"+url.PathEscape(name), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetVar replaces the value of a storage variable.
func (c *Client) SetVar(ctx context.Context, name string, req *VarRequest) (*VarResponse, error) {
	var resp VarResponse
	if err := c.do(ctx, http.MethodPut, "/v1/vars/"+url.PathEscape(name), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AppendVar appends to the value of a storage variable.
func (c *Client) AppendVar(ctx context.Context, name string, req *VarRequest) (*VarResponse, error) {
	var resp VarResponse
	if err := c.do(ctx, http.MethodPost, "/v1/vars/"+url.PathEscape(name), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Library(ctx context.Context) (*LibraryResponse, error) {
	var resp LibraryResponse
	if err := c.do(ctx, http.MethodGet, "/v1/library", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Heartbeat checks if the server has started and is responsive; if yes, it
// returns nil, otherwise an error.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodHead, "/", nil, nil)
}

// ParseSeqID parses the "seqN" form sequence ids are reported in.
func ParseSeqID(s string) (uint64, error) {
	if len(s) < 4 || s[:3] != "seq" {
		return 0, fmt.Errorf("invalid sequence id %q", s)
	}
	return strconv.ParseUint(s[3:], 10, 64)
}
