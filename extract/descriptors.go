package extract

import "github.com/maruishi/recolte/locator"

// Field names as they appear in the target UI's list headers.
const (
	FieldID          = "求職者ID"
	FieldName        = "求職者名"
	FieldPhase       = "フェーズ"
	FieldChannel     = "登録経路"
	FieldOwner       = "担当CA"
	FieldCompanyCode = "企業コード"
	FieldCompanyName = "企業名"
	FieldProcess     = "選考プロセス"
	FieldProcessDate = "選考プロセス日付"
)

// Descriptor describes how to reach and read one record type's list view.
type Descriptor struct {
	Type RecordType

	// Nav is the ordered sequence of clicks from the authenticated landing
	// page to the list view.
	Nav []locator.Ref

	// Table addresses the list table; NextPage its pagination control.
	// Absence of NextPage means the last page has been reached.
	Table    locator.Ref
	NextPage locator.Ref

	Schema Schema

	// UnorderedSafe marks a list safe to stop reading early once a target
	// filter is exhausted. Lists that can repeat an identifier across rows
	// must be scanned to the end.
	UnorderedSafe bool
}

// Candidates describes the candidate list. Each candidate appears exactly
// once, so an exhausted target filter may stop the scan early.
func Candidates() Descriptor {
	return Descriptor{
		Type: TypeCandidate,
		Nav: []locator.Ref{
			{Group: "menu", Name: "other_operations"},
			{Group: "candidate", Name: "menu_link"},
		},
		Table:    locator.Ref{Group: "candidate", Name: "list_table"},
		NextPage: locator.Ref{Group: "candidate", Name: "next_page"},
		Schema: Schema{
			IDField:  FieldID,
			Required: []string{FieldID},
			Columns:  []string{FieldID, FieldName, FieldPhase, FieldChannel, FieldOwner},
		},
		UnorderedSafe: true,
	}
}

// EntryProcesses describes the selection-process list. A candidate can hold
// several concurrent processes, so the list is always scanned to the end.
func EntryProcesses() Descriptor {
	return Descriptor{
		Type: TypeEntryProcess,
		Nav: []locator.Ref{
			{Group: "menu", Name: "other_operations"},
			{Group: "entryprocess", Name: "menu_link"},
		},
		Table:    locator.Ref{Group: "entryprocess", Name: "list_table"},
		NextPage: locator.Ref{Group: "entryprocess", Name: "next_page"},
		Schema: Schema{
			IDField:  FieldID,
			Required: []string{FieldID, FieldCompanyCode, FieldProcess, FieldOwner},
			Columns: []string{
				FieldID, FieldName, FieldCompanyCode, FieldCompanyName,
				FieldProcess, FieldProcessDate, FieldOwner, FieldChannel,
			},
		},
		UnorderedSafe: false,
	}
}

// Descriptors returns the descriptor for a record type.
func Descriptors(t RecordType) (Descriptor, bool) {
	switch t {
	case TypeCandidate:
		return Candidates(), true
	case TypeEntryProcess:
		return EntryProcesses(), true
	default:
		return Descriptor{}, false
	}
}
