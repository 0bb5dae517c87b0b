package main

import (
	"DeliveryInsight/src/config"
	"DeliveryInsight/src/datapush"
	"DeliveryInsight/src/datasource/email"
	"DeliveryInsight/src/processor"
	"DeliveryInsight/src/storage"
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func ordersCSV(n, nullRatings int) string {
	var b strings.Builder
	b.WriteString("Order_ID,Agent_Rating,Order_Date,Order_Time,Pickup_Time,Weather,Traffic,Vehicle,Area,Delivery_Time,Category\n")
	for i := 0; i < n; i++ {
		rating := fmt.Sprintf("%.1f", 3+float64(i%5)*0.5)
		if i < nullRatings {
			rating = "NA"
		}
		fmt.Fprintf(&b, "o%d,%s,2022-03-%02d,%02d:30:00,%02d:40:00,Sunny,Low,%s,Urban,%d,Toys\n",
			i, rating, 1+i%28, i%24, i%24, []string{"motorcycle", "van"}[i%2], 20+i)
	}
	return b.String()
}

// testApp 加载临时目录中的配置，不连接任何外部服务
func testApp(t *testing.T, input string) *app {
	t.Helper()
	dir := t.TempDir()
	raw, err := json.Marshal(map[string]interface{}{
		"input_path":  input,
		"output_path": filepath.Join(dir, "out", "report.xlsx"),
		"data_dir":    filepath.Join(dir, "data"),
		"log_name":    filepath.Join(dir, "app.log"),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), raw, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dataconfig.json"), []byte(`{"outlier_threshold": 25}`), 0644))

	cfg, dcfg, err := config.Load(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)

	logger, err := storage.NewLogger(cfg.LogName)
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })

	a := newApp(cfg, dcfg, logger)
	a.sendReport = func(*config.Config, string, string) error {
		t.Fatal("unexpected mail")
		return nil
	}
	return a
}

func writeInput(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestRunOnce(t *testing.T) {
	a := testApp(t, writeInput(t, ordersCSV(20, 2)))
	a.cfg.EnrichedPath = filepath.Join(t.TempDir(), "enriched.xlsx")

	var mailed []string
	a.cfg.SendEmail.Server = "smtp.example.com:465"
	a.cfg.SendEmail.To = []string{"ops@example.com"}
	a.sendReport = func(cfg *config.Config, attachment, body string) error {
		mailed = append(mailed, attachment, body)
		return nil
	}

	var mu sync.Mutex
	var pushed []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Text struct {
				Content string `json:"content"`
			} `json:"text"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		mu.Lock()
		pushed = append(pushed, payload.Text.Content)
		mu.Unlock()
		w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()
	a.pusher = datapush.NewPusher(srv.URL, "")

	res, err := a.runOnce()
	require.NoError(t, err)
	assert.Equal(t, 20, res.Report.Raw)
	assert.Equal(t, 18, res.Report.Kept)
	assert.Equal(t, "10.00%", res.Report.Percent())
	// 配送时长 20..24 低于 25 分钟
	assert.Equal(t, 5, res.Outliers.Count)

	_, err = os.Stat(a.cfg.OutputPath)
	require.NoError(t, err)
	_, err = os.Stat(a.cfg.EnrichedPath)
	require.NoError(t, err)

	require.Len(t, mailed, 2)
	assert.Equal(t, a.cfg.OutputPath, mailed[0])
	assert.Contains(t, mailed[1], "保留: 18")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, pushed, 1)
	assert.Equal(t, mailed[1], pushed[0])
}

func TestRunOnceParseError(t *testing.T) {
	body := strings.Replace(ordersCSV(10, 0), "2022-03-04", "04/03/2022", 1)
	a := testApp(t, writeInput(t, body))

	_, err := a.runOnce()
	var perr *processor.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "Order_Date", perr.Field)
	assert.Equal(t, "04/03/2022", perr.Value)

	_, statErr := os.Stat(a.cfg.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunOnceMissingInput(t *testing.T) {
	a := testApp(t, "")
	_, err := a.runOnce()
	assert.ErrorIs(t, err, errNoInput)
}

type stubMailbox struct {
	emails []*email.Email
}

func (s *stubMailbox) Connect() error { return nil }
func (s *stubMailbox) Disconnect() {}
func (s *stubMailbox) FetchUnreadEmails() ([]*email.Email, error) { return s.emails, nil }

func TestRunOnceFromMailbox(t *testing.T) {
	a := testApp(t, "")
	a.cfg.Email.TargetSubject = "配送数据"
	a.handler = email.NewAttachmentHandler("配送数据", a.cfg.DataDir)
	a.mailbox = &stubMailbox{emails: []*email.Email{{
		UID:         3,
		Subject:     "配送数据 0319",
		Date:        time.Now(),
		Attachments: []*email.Attachment{{Filename: "orders.csv", Content: []byte(ordersCSV(8, 1))}},
	}}}

	res, err := a.runOnce()
	require.NoError(t, err)
	assert.Equal(t, 7, res.Report.Kept)
	_, err = os.Stat(filepath.Join(a.cfg.DataDir, "orders.csv"))
	assert.NoError(t, err)

	// 同一封邮件只处理一次，没有 input_path 时报错
	_, err = a.runOnce()
	assert.ErrorIs(t, err, errNoInput)
}

// ordersXLSX 把 ordersCSV 的内容写成 xlsx
func ordersXLSX(t *testing.T, n int) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, line := range strings.Split(strings.TrimSpace(ordersCSV(n, 0)), "\n") {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		var row []interface{}
		for _, v := range strings.Split(line, ",") {
			row = append(row, v)
		}
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestRunOnceFromXLSXAttachment(t *testing.T) {
	a := testApp(t, writeInput(t, ordersCSV(3, 0)))
	a.cfg.Email.TargetSubject = "配送数据"
	a.handler = email.NewAttachmentHandler("配送数据", a.cfg.DataDir)
	a.mailbox = &stubMailbox{emails: []*email.Email{{
		UID:         5,
		Subject:     "配送数据 0320",
		Date:        time.Now(),
		Attachments: []*email.Attachment{{Filename: "orders.xlsx", Content: ordersXLSX(t, 12)}},
	}}}

	res, err := a.runOnce()
	require.NoError(t, err)
	assert.Equal(t, 12, res.Report.Kept)
	_, err = os.Stat(filepath.Join(a.cfg.DataDir, "orders.xlsx"))
	assert.NoError(t, err)

	// 附件处理过后回到 input_path
	res, err = a.runOnce()
	require.NoError(t, err)
	assert.Equal(t, 3, res.Report.Kept)
}

func TestInterval(t *testing.T) {
	a := testApp(t, "")
	assert.False(t, a.longRunning())

	a.cfg.Email.CheckInterval = config.Duration(5 * time.Minute)
	assert.Equal(t, time.Duration(0), a.interval())
	a.mailbox = &stubMailbox{}
	assert.Equal(t, 5*time.Minute, a.interval())

	a.cfg.ScheduleEvery = config.Duration(time.Hour)
	assert.Equal(t, time.Hour, a.interval())
	assert.True(t, a.longRunning())
}

func TestServeStopsOnCancel(t *testing.T) {
	a := testApp(t, "")
	a.cfg.ScheduleEvery = config.Duration(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
}

func TestLogsHandler(t *testing.T) {
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "app.log"))
	require.NoError(t, err)
	defer logger.Close()

	srv := httptest.NewServer(logsHandler(logger))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	lines := make(chan string, 1)
	go func() {
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return
		}
		defer resp.Body.Close()
		line, _ := bufio.NewReader(resp.Body).ReadString('\n')
		lines <- line
	}()

	// 订阅在请求到达后才生效，重复写直到收到
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case line := <-lines:
			assert.Contains(t, line, "INFO: hello")
			return
		case <-tick.C:
			logger.Info("hello")
		case <-timeout:
			t.Fatal("no log line streamed")
		}
	}
}
