package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CZERTAINLY/Inspector/internal/model"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const goodPage = `<!doctype html><html lang="en"><head><title>ok</title></head><body><a href="/">home</a></body></html>`
const badPage = `<!doctype html><html><head><title>bad</title></head><body><img src="x.png"></body></html>`

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "run", RunE: doRun, SilenceUsage: true, SilenceErrors: true}
	addRunFlags(cmd)
	return cmd
}

func TestDoRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/good", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, goodPage)
	})
	mux.HandleFunc("/bad", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, badPage)
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<urlset><url><loc>https://site.invalid/good</loc></url></urlset>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	type then struct {
		err    error
		total  float64
		passes float64
	}
	var testCases = []struct {
		scenario string
		given    []string
		then     then
	}{
		{"all good", []string{srv.URL + "/good", srv.URL + "/good"}, then{nil, 2, 2}},
		{"one bad", []string{"--concurrency", "2", srv.URL + "/good", srv.URL + "/bad"}, then{errTargetsFailed, 2, 1}},
		{"bad within threshold", []string{"--threshold", "2", srv.URL + "/bad"}, then{nil, 1, 1}},
		{
			"sitemap",
			[]string{
				"--sitemap", srv.URL + "/sitemap.xml",
				"--sitemap-find", "https://site.invalid",
				"--sitemap-replace", srv.URL,
				"--isolated=false",
			},
			then{nil, 1, 1},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			config = model.DefaultFile()
			config.Reporters = nil
			t.Cleanup(func() {
				flagJSON = ""
			})

			var buf bytes.Buffer
			cmd := newRunCmd()
			cmd.SetOut(&buf)
			cmd.SetArgs(append([]string{"--json", "-"}, tt.given...))
			err := cmd.ExecuteContext(t.Context())
			if tt.then.err != nil {
				require.ErrorIs(t, err, tt.then.err)
			} else {
				require.NoError(t, err)
			}

			var got map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
			require.Equal(t, tt.then.total, got["total"])
			require.Equal(t, tt.then.passes, got["passes"])
		})
	}

	t.Run("no targets", func(t *testing.T) {
		config = model.DefaultFile()
		cmd := newRunCmd()
		cmd.SetArgs([]string{})
		err := cmd.ExecuteContext(t.Context())
		require.ErrorContains(t, err, "nothing to inspect")
	})

	t.Run("invalid concurrency", func(t *testing.T) {
		config = model.DefaultFile()
		cmd := newRunCmd()
		cmd.SetArgs([]string{"--concurrency", "-1", srv.URL + "/good"})
		require.Error(t, cmd.ExecuteContext(t.Context()))
	})
}
