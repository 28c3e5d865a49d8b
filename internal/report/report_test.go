package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/ledger"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

func sampleEntries() []ledger.Entry {
	return []ledger.Entry{
		{Event: ledger.EventCreated, Ref: model.ResourceRef{AccountName: "account01", AccountID: "111", ResourceType: "ec2-instance"}},
		{Event: ledger.EventCreated, Ref: model.ResourceRef{AccountName: "account01", AccountID: "111", ResourceType: "ec2-instance"}},
		{Event: ledger.EventRetired, Ref: model.ResourceRef{AccountName: "account01", AccountID: "111", ResourceType: "ec2-instance"}},
		{Event: ledger.EventFailed, Ref: model.ResourceRef{AccountName: "account02", AccountID: "222", ResourceType: "s3-bucket"}},
	}
}

func TestBuildAggregatesCountsPerAccountAndResourceType(t *testing.T) {
	header := ledger.Header{SessionID: "sess-1", User: "clouduser01"}
	doc := Build(header, sampleEntries(), time.Now())

	if len(doc.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(doc.Accounts))
	}
	var acc1 *AccountSummary
	for i := range doc.Accounts {
		if doc.Accounts[i].AccountName == "account01" {
			acc1 = &doc.Accounts[i]
		}
	}
	if acc1 == nil {
		t.Fatal("expected account01 summary")
	}
	counts := acc1.ByResource["ec2-instance"]
	if counts.Created != 2 || counts.Retired != 1 {
		t.Errorf("unexpected counts %+v", counts)
	}
}

func TestWriteCSVProducesHeaderAndRows(t *testing.T) {
	doc := Build(ledger.Header{SessionID: "sess-2"}, sampleEntries(), time.Now())
	var buf bytes.Buffer
	if err := WriteCSV(&buf, doc); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "account,accountId,resourceType,created,retired,failed\n") {
		t.Errorf("unexpected CSV header: %q", out)
	}
	if !strings.Contains(out, "account01,111,ec2-instance,2,1,0") {
		t.Errorf("expected ec2-instance row, got %q", out)
	}
}

func TestWriteJSONRoundTripsSessionID(t *testing.T) {
	doc := Build(ledger.Header{SessionID: "sess-3"}, sampleEntries(), time.Now())
	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"sessionId": "sess-3"`) {
		t.Errorf("expected sessionId in JSON output, got %q", buf.String())
	}
}

func TestBuildDashboardLimitsToTenMostRecent(t *testing.T) {
	var docs []Document
	for i := 0; i < 15; i++ {
		docs = append(docs, Build(ledger.Header{SessionID: "s"}, nil, time.Now()))
	}
	entries := BuildDashboard(docs)
	if len(entries) != 10 {
		t.Errorf("expected dashboard capped at 10 entries, got %d", len(entries))
	}
}
