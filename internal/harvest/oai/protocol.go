package oai

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Namespace is the OAI-PMH 2.0 XML namespace.
const Namespace = "http://www.openarchives.org/OAI/2.0/"

// OAI-PMH error codes.
const (
	CodeBadArgument             = "badArgument"
	CodeBadResumptionToken      = "badResumptionToken"
	CodeBadVerb                 = "badVerb"
	CodeCannotDisseminateFormat = "cannotDisseminateFormat"
	CodeIDDoesNotExist          = "idDoesNotExist"
	CodeNoRecordsMatch          = "noRecordsMatch"
	CodeNoMetadataFormats       = "noMetadataFormats"
	CodeNoSetHierarchy          = "noSetHierarchy"
)

// ProtocolError is an <error> element returned by the repository.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("oai: %s", e.Code)
	}
	return fmt.Sprintf("oai: %s: %s", e.Code, e.Message)
}

// Header is a record header.
type Header struct {
	Status     string   `xml:"status,attr"`
	Identifier string   `xml:"identifier"`
	Datestamp  string   `xml:"datestamp"`
	SetSpecs   []string `xml:"setSpec"`
}

// Deleted reports whether the repository marked the record deleted.
func (h Header) Deleted() bool {
	return h.Status == "deleted"
}

// Fragment holds an element's inner XML verbatim.
type Fragment struct {
	Inner []byte `xml:",innerxml"`
}

// Empty reports whether the fragment holds only whitespace.
func (f *Fragment) Empty() bool {
	return f == nil || strings.TrimSpace(string(f.Inner)) == ""
}

// Record is a record as returned by ListRecords and GetRecord.
type Record struct {
	Header   Header    `xml:"header"`
	Metadata *Fragment `xml:"metadata"`
	About    *Fragment `xml:"about"`
}

// ResumptionToken continues an incomplete list.
type ResumptionToken struct {
	Token            string `xml:",chardata"`
	CompleteListSize string `xml:"completeListSize,attr"`
	Cursor           string `xml:"cursor,attr"`
}

// Identify describes the repository.
type Identify struct {
	RepositoryName    string   `xml:"repositoryName"`
	BaseURL           string   `xml:"baseURL"`
	ProtocolVersion   string   `xml:"protocolVersion"`
	AdminEmails       []string `xml:"adminEmail"`
	EarliestDatestamp string   `xml:"earliestDatestamp"`
	DeletedRecord     string   `xml:"deletedRecord"`
	Granularity       string   `xml:"granularity"`
}

type envelope struct {
	XMLName      xml.Name `xml:"OAI-PMH"`
	ResponseDate string   `xml:"responseDate"`
	Errors       []struct {
		Code    string `xml:"code,attr"`
		Message string `xml:",chardata"`
	} `xml:"error"`
	Identify        *Identify `xml:"Identify"`
	ListIdentifiers *struct {
		Headers []Header         `xml:"header"`
		Token   *ResumptionToken `xml:"resumptionToken"`
	} `xml:"ListIdentifiers"`
	ListRecords *struct {
		Records []Record         `xml:"record"`
		Token   *ResumptionToken `xml:"resumptionToken"`
	} `xml:"ListRecords"`
	GetRecord *struct {
		Record Record `xml:"record"`
	} `xml:"GetRecord"`
}

func (e *envelope) err() error {
	if len(e.Errors) == 0 {
		return nil
	}
	first := e.Errors[0]
	return &ProtocolError{Code: first.Code, Message: strings.TrimSpace(first.Message)}
}

func tokenOf(t *ResumptionToken) string {
	if t == nil {
		return ""
	}
	return strings.TrimSpace(t.Token)
}
