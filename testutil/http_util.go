package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

func Unmarshal(res *http.Response, v interface{}, t *testing.T) {
	t.Helper()
	defer res.Body.Close()

	body, err := ioutil.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	if err = json.Unmarshal(body, v); err != nil {
		t.Fatalf("decoding %q: %v", body, err)
	}
}

// RequestOptions carries the basic auth credentials of the calling user.
type RequestOptions struct {
	Username string
	Password string
}

// Authorization is the value of the Authorization header for the credentials.
func (o RequestOptions) Authorization() string {
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth(o.Username, o.Password)
	return req.Header.Get("Authorization")
}

func Get(url string, t *testing.T, op ...RequestOptions) *http.Response {
	return SendRequest(http.MethodGet, url, nil, t, op...)
}

func Delete(url string, t *testing.T, op ...RequestOptions) *http.Response {
	return SendRequest(http.MethodDelete, url, nil, t, op...)
}

func Put(url string, request interface{}, t *testing.T, op ...RequestOptions) *http.Response {
	return SendRequest(http.MethodPut, url, request, t, op...)
}

func Post(url string, request interface{}, t *testing.T, op ...RequestOptions) *http.Response {
	return SendRequest(http.MethodPost, url, request, t, op...)
}

// SendRequest sends request as a JSON body. A nil request sends no body.
func SendRequest(method, url string, request interface{}, t *testing.T, op ...RequestOptions) *http.Response {
	t.Helper()

	var body *bytes.Buffer
	if request == nil {
		body = &bytes.Buffer{}
	} else {
		b, err := json.Marshal(request)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}

	if len(op) > 0 {
		req.SetBasicAuth(op[0].Username, op[0].Password)
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}

	return res
}

// DialWs opens a websocket to an http(s) url of a test server.
func DialWs(url string, t *testing.T, op ...RequestOptions) net.Conn {
	t.Helper()

	dialer := ws.Dialer{}
	if len(op) > 0 {
		header := http.Header{}
		header.Set("Authorization", op[0].Authorization())
		dialer.Header = ws.HandshakeHeaderHTTP(header)
	}

	conn, _, _, err := dialer.Dial(context.Background(), strings.Replace(url, "http", "ws", 1))
	if err != nil {
		t.Fatal(err)
	}
	return conn
}

func ReadWs(conn net.Conn, v interface{}, t *testing.T) {
	t.Helper()

	msg, _, err := wsutil.ReadServerData(conn)
	if err != nil {
		t.Fatal(err)
	}

	err = json.Unmarshal(msg, v)
	if err != nil {
		t.Fatal(err)
	}
}
