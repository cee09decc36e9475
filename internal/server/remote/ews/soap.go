package ews

import "encoding/xml"

const (
	nsSoap     = "http://schemas.xmlsoap.org/soap/envelope/"
	nsTypes    = "http://schemas.microsoft.com/exchange/services/2006/types"
	nsMessages = "http://schemas.microsoft.com/exchange/services/2006/messages"

	serverVersion = "Exchange2013_SP1"
)

// Requests are written with fixed prefixes; responses are matched on local
// names only, whatever prefixes the server picks.

type requestEnvelope struct {
	XMLName xml.Name `xml:"soap:Envelope"`
	XMLNSS  string   `xml:"xmlns:soap,attr"`
	XMLNST  string   `xml:"xmlns:t,attr"`
	XMLNSM  string   `xml:"xmlns:m,attr"`
	Header  struct {
		RequestServerVersion struct {
			Version string `xml:"Version,attr"`
		} `xml:"t:RequestServerVersion"`
	} `xml:"soap:Header"`
	Body struct {
		Content any
	} `xml:"soap:Body"`
}

func newEnvelope(body any) *requestEnvelope {
	env := &requestEnvelope{XMLNSS: nsSoap, XMLNST: nsTypes, XMLNSM: nsMessages}
	env.Header.RequestServerVersion.Version = serverVersion
	env.Body.Content = body
	return env
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type responseEnvelope[T any] struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault   *soapFault `xml:"Fault"`
		Content *T         `xml:",any"`
	} `xml:"Body"`
}

// responseMessage is the status every EWS response message carries.
type responseMessage struct {
	ResponseClass string `xml:"ResponseClass,attr"`
	ResponseCode  string `xml:"ResponseCode"`
	MessageText   string `xml:"MessageText"`
}

type fieldURI struct {
	FieldURI string `xml:"FieldURI,attr"`
}

type distinguishedFolderID struct {
	ID string `xml:"Id,attr"`
}

type folderIDRef struct {
	ID string `xml:"Id,attr"`
}

type folderIDs struct {
	Distinguished *distinguishedFolderID `xml:"t:DistinguishedFolderId,omitempty"`
	Folder        *folderIDRef           `xml:"t:FolderId,omitempty"`
}

func distinguished(id string) folderIDs {
	return folderIDs{Distinguished: &distinguishedFolderID{ID: id}}
}

func byID(id string) folderIDs {
	return folderIDs{Folder: &folderIDRef{ID: id}}
}

type additionalProperties struct {
	FieldURIs []fieldURI `xml:"t:FieldURI"`
}

func properties(uris ...string) *additionalProperties {
	p := &additionalProperties{}
	for _, u := range uris {
		p.FieldURIs = append(p.FieldURIs, fieldURI{FieldURI: u})
	}
	return p
}

type shape struct {
	BaseShape            string                `xml:"t:BaseShape"`
	AdditionalProperties *additionalProperties `xml:"t:AdditionalProperties,omitempty"`
}

// GetFolder

type getFolderRequest struct {
	XMLName     xml.Name  `xml:"m:GetFolder"`
	FolderShape shape     `xml:"m:FolderShape"`
	FolderIDs   folderIDs `xml:"m:FolderIds"`
}

type folderXML struct {
	FolderID struct {
		ID string `xml:"Id,attr"`
	} `xml:"FolderId"`
	DisplayName string `xml:"DisplayName"`
	FolderClass string `xml:"FolderClass"`
}

type foldersXML struct {
	Items []folderXML `xml:",any"`
}

type getFolderResponse struct {
	Messages []struct {
		responseMessage
		Folders foldersXML `xml:"Folders"`
	} `xml:"ResponseMessages>GetFolderResponseMessage"`
}

// FindFolder

type indexedPageView struct {
	MaxEntriesReturned int    `xml:"MaxEntriesReturned,attr"`
	Offset             int    `xml:"Offset,attr"`
	BasePoint          string `xml:"BasePoint,attr"`
}

type isEqualTo struct {
	FieldURI fieldURI `xml:"t:FieldURI"`
	Constant struct {
		Value string `xml:"Value,attr"`
	} `xml:"t:FieldURIOrConstant>t:Constant"`
}

type restriction struct {
	IsEqualTo isEqualTo `xml:"t:IsEqualTo"`
}

type findFolderRequest struct {
	XMLName         xml.Name        `xml:"m:FindFolder"`
	Traversal       string          `xml:"Traversal,attr"`
	FolderShape     shape           `xml:"m:FolderShape"`
	View            indexedPageView `xml:"m:IndexedPageFolderView"`
	Restriction     restriction     `xml:"m:Restriction"`
	ParentFolderIDs folderIDs       `xml:"m:ParentFolderIds"`
}

type rootFolderXML struct {
	IncludesLastItemInRange bool `xml:"IncludesLastItemInRange,attr"`
	IndexedPagingOffset     int  `xml:"IndexedPagingOffset,attr"`
	TotalItemsInView        int  `xml:"TotalItemsInView,attr"`
}

type findFolderResponse struct {
	Messages []struct {
		responseMessage
		RootFolder struct {
			rootFolderXML
			Folders foldersXML `xml:"Folders"`
		} `xml:"RootFolder"`
	} `xml:"ResponseMessages>FindFolderResponseMessage"`
}

// FindItem

type fieldOrder struct {
	Order    string   `xml:"Order,attr"`
	FieldURI fieldURI `xml:"t:FieldURI"`
}

type calendarViewXML struct {
	StartDate          string `xml:"StartDate,attr"`
	EndDate            string `xml:"EndDate,attr"`
	MaxEntriesReturned int    `xml:"MaxEntriesReturned,attr,omitempty"`
}

type findItemRequest struct {
	XMLName         xml.Name         `xml:"m:FindItem"`
	Traversal       string           `xml:"Traversal,attr"`
	ItemShape       shape            `xml:"m:ItemShape"`
	PageView        *indexedPageView `xml:"m:IndexedPageItemView,omitempty"`
	CalendarView    *calendarViewXML `xml:"m:CalendarView,omitempty"`
	SortOrder       *fieldOrder      `xml:"m:SortOrder>t:FieldOrder,omitempty"`
	ParentFolderIDs folderIDs        `xml:"m:ParentFolderIds"`
}

type itemXML struct {
	ItemID struct {
		ID string `xml:"Id,attr"`
	} `xml:"ItemId"`
	Subject          string `xml:"Subject"`
	DateTimeReceived string `xml:"DateTimeReceived"`
	From             struct {
		Mailbox struct {
			Name         string `xml:"Name"`
			EmailAddress string `xml:"EmailAddress"`
		} `xml:"Mailbox"`
	} `xml:"From"`
	Start         string  `xml:"Start"`
	End           string  `xml:"End"`
	Location      *string `xml:"Location"`
	IsAllDayEvent bool    `xml:"IsAllDayEvent"`
	IsRecurring   bool    `xml:"IsRecurring"`
}

type findItemResponse struct {
	Messages []struct {
		responseMessage
		RootFolder struct {
			rootFolderXML
			Items struct {
				Items []itemXML `xml:",any"`
			} `xml:"Items"`
		} `xml:"RootFolder"`
	} `xml:"ResponseMessages>FindItemResponseMessage"`
}
