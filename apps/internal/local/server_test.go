// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package local

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kylelemons/godebug/pretty"
)

func TestServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tests := []struct {
		desc       string
		q          url.Values
		statusCode int
		failPage   bool
		// wantResult is whether the request should resolve the redirect wait.
		wantResult bool
	}{
		{
			desc:       "Authority error lands on the fail page and still yields the redirect",
			q:          url.Values{"error": []string{"access_denied"}, "error_description": []string{"<script>denied</script>"}},
			statusCode: 200,
			failPage:   true,
			wantResult: true,
		},
		{
			desc:       "Stray request without code or error is not the redirect",
			q:          url.Values{},
			statusCode: http.StatusNotFound,
		},
		{
			desc:       "Success",
			q:          url.Values{"state": []string{"state"}, "code": []string{"code"}},
			statusCode: 200,
			wantResult: true,
		},
	}

	for _, test := range tests {
		serv, err := New(0, nil, nil)
		if err != nil {
			panic(err)
		}
		defer serv.Shutdown()

		if !strings.HasPrefix(serv.Addr, "http://localhost") {
			t.Fatalf("unexpected server address %s", serv.Addr)
		}
		u, err := url.Parse(serv.Addr)
		if err != nil {
			panic(err)
		}
		u.RawQuery = test.q.Encode()

		resp, err := http.DefaultClient.Do(
			&http.Request{
				Method: "GET",
				URL:    u,
			},
		)

		if err != nil {
			panic(err)
		}

		if resp.StatusCode != test.statusCode {
			t.Errorf("TestServer(%s): got StatusCode == %d, want StatusCode == %d", test.desc, resp.StatusCode, test.statusCode)
			continue
		}

		if !test.wantResult {
			shortCtx, shortCancel := context.WithTimeout(ctx, 50*time.Millisecond)
			res := serv.Result(shortCtx)
			shortCancel()
			if res.Err == nil {
				t.Errorf("TestServer(%s): a stray request resolved the redirect wait", test.desc)
			}
			continue
		}

		content, err := io.ReadAll(resp.Body)
		if err != nil {
			panic(err)
		}

		if test.failPage {
			if !strings.Contains(string(content), "Authentication Failed") {
				t.Errorf("TestServer(%s): got okay page, want failed page", test.desc)
			}
			if strings.Contains(string(content), "<script>") {
				t.Errorf("TestServer(%s): fail page did not escape the error description", test.desc)
			}
		} else if !strings.Contains(string(content), "Authentication Complete") {
			t.Errorf("TestServer(%s): got failed page, okay page", test.desc)
		}

		res := serv.Result(ctx)
		if res.Err != nil {
			t.Errorf("TestServer(%s): got Result.Err == %s, want Result.Err == nil", test.desc, res.Err)
			continue
		}
		got, err := url.Parse(res.URL)
		if err != nil {
			t.Errorf("TestServer(%s): Result.URL did not parse: %s", test.desc, err)
			continue
		}
		if diff := pretty.Compare(test.q, got.Query()); diff != "" {
			t.Errorf("TestServer(%s): Result.URL query: -want/+got:\n%s", test.desc, diff)
		}
	}
}

func TestServerResultHonorsContext(t *testing.T) {
	serv, err := New(0, nil, nil)
	if err != nil {
		panic(err)
	}
	defer serv.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := serv.Result(ctx)
	if res.Err == nil {
		t.Fatal("TestServerResultHonorsContext: got Result.Err == nil, want the context error")
	}
}
