package scraper

import "testing"

const resultPageFixture = `
<html><body>
<div class="details">
  <table>
    <tbody>
      <tr><td>University Seat Number :</td><td>1ox21cs001</td></tr>
      <tr><td>Student Name :</td><td> Alice Example</td></tr>
    </tbody>
  </table>
</div>
<div class="divTable">
  <div class="divTableRow">
    <div class="divTableCell">Subject Code</div>
    <div class="divTableCell">Subject Name</div>
    <div class="divTableCell">Internal</div>
    <div class="divTableCell">External</div>
    <div class="divTableCell">Total</div>
    <div class="divTableCell">Result</div>
  </div>
  <div class="divTableRow">
    <div class="divTableCell">21CS53</div>
    <div class="divTableCell">Database Management Systems</div>
    <div class="divTableCell">23</div>
    <div class="divTableCell">38</div>
    <div class="divTableCell">61</div>
    <div class="divTableCell">P</div>
  </div>
  <div class="divTableRow">
    <div class="divTableCell">21CS51</div>
    <div class="divTableCell">Computer Networks</div>
    <div class="divTableCell">25</div>
    <div class="divTableCell">40</div>
    <div class="divTableCell">65</div>
    <div class="divTableCell">P</div>
  </div>
</div>
</body></html>`

func TestParseResultPage(t *testing.T) {
	rec, err := parseResultPage(resultPageFixture)
	if err != nil {
		t.Fatalf("parseResultPage returned error: %v", err)
	}

	if rec.USN != "1OX21CS001" {
		t.Fatalf("expected uppercased USN 1OX21CS001, got %q", rec.USN)
	}
	if rec.Name != " ALICE EXAMPLE" {
		t.Fatalf("expected raw uppercased name with leading space, got %q", rec.Name)
	}
	if len(rec.Marks) != 2 {
		t.Fatalf("expected 2 marks rows, got %d", len(rec.Marks))
	}

	// Sorted ascending by subject code regardless of page order.
	if rec.Marks[0].SubCode != "21CS51" || rec.Marks[1].SubCode != "21CS53" {
		t.Fatalf("marks not sorted by sub_code: %q, %q", rec.Marks[0].SubCode, rec.Marks[1].SubCode)
	}

	first := rec.Marks[0]
	if first.Internal != 25 || first.External != 40 || first.Total != 65 || first.Result != "P" {
		t.Fatalf("unexpected first mark: %+v", first)
	}
}

func TestParseResultPageMissingDetails(t *testing.T) {
	if _, err := parseResultPage("<html><body><p>nothing here</p></body></html>"); err == nil {
		t.Fatal("expected error for page without details table")
	}
}

func TestParseResultPageNonNumericScore(t *testing.T) {
	page := `
<table><tbody>
<tr><td>USN</td><td>1OX21CS001</td></tr>
<tr><td>Name</td><td>ALICE</td></tr>
</tbody></table>
<div class="divTable">
  <div class="divTableRow"><div class="divTableCell">h</div></div>
  <div class="divTableRow">
    <div class="divTableCell">21CS51</div>
    <div class="divTableCell">Networks</div>
    <div class="divTableCell">NA</div>
    <div class="divTableCell">40</div>
    <div class="divTableCell">65</div>
    <div class="divTableCell">P</div>
  </div>
</div>`
	if _, err := parseResultPage(page); err == nil {
		t.Fatal("expected error for non-numeric internal score")
	}
}
