package ews

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/dmitrijs2005/mailvault/internal/server/models"
	"github.com/dmitrijs2005/mailvault/internal/server/remote"
)

const (
	calendarFolderClass = "IPF.Appointment"
	folderPageSize      = 100
	// maxFolderPages bounds FindFolder paging on mailboxes with huge trees.
	maxFolderPages = 50
)

var _ remote.Gateway = (*Client)(nil)

// Login proves cred works by binding the inbox, then lists the calendar
// folders of the mailbox. Any failure is common.ErrAuthRejected.
func (c *Client) Login(ctx context.Context, cred models.Credential) ([]models.Calendar, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	s := c.open(cred)
	defer s.close()

	if _, err := s.getFolder(ctx, distinguished("inbox")); err != nil {
		return nil, fmt.Errorf("%w: inbox probe failed: %v", common.ErrAuthRejected, err)
	}

	cals, err := s.findCalendarFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: calendar enumeration failed: %v", common.ErrAuthRejected, err)
	}
	return cals, nil
}

// ListInboxMessages returns the newest limit inbox messages.
func (c *Client) ListInboxMessages(ctx context.Context, cred models.Credential, limit int) ([]remote.Message, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	s := c.open(cred)
	defer s.close()

	req := &findItemRequest{
		Traversal: "Shallow",
		ItemShape: shape{
			BaseShape:            "IdOnly",
			AdditionalProperties: properties("item:Subject", "item:DateTimeReceived", "message:From"),
		},
		PageView:        &indexedPageView{MaxEntriesReturned: remote.ClampLimit(limit), BasePoint: "Beginning"},
		SortOrder:       &fieldOrder{Order: "Descending", FieldURI: fieldURI{FieldURI: "item:DateTimeReceived"}},
		ParentFolderIDs: distinguished("inbox"),
	}

	resp, err := call[findItemResponse](ctx, s, "FindItem", req)
	if err != nil {
		return nil, err
	}

	msgs := []remote.Message{}
	for _, m := range resp.Messages {
		if err := checkMessage("FindItem", m.responseMessage); err != nil {
			return nil, err
		}
		for _, it := range m.RootFolder.Items.Items {
			msgs = append(msgs, c.toMessage(ctx, it))
		}
	}
	return msgs, nil
}

// ListCalendarEvents returns the calendar's display name and the events
// overlapping w.
func (c *Client) ListCalendarEvents(ctx context.Context, cred models.Credential, calendarID string, w remote.Window) (*remote.CalendarView, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	s := c.open(cred)
	defer s.close()

	folder, err := s.getFolder(ctx, byID(calendarID))
	if err != nil {
		return nil, err
	}

	req := &findItemRequest{
		Traversal: "Shallow",
		ItemShape: shape{
			BaseShape: "IdOnly",
			AdditionalProperties: properties(
				"item:Subject", "calendar:Start", "calendar:End",
				"calendar:Location", "calendar:IsAllDayEvent", "calendar:IsRecurring",
			),
		},
		CalendarView: &calendarViewXML{
			StartDate: w.Start.UTC().Format(time.RFC3339),
			EndDate:   w.End.UTC().Format(time.RFC3339),
		},
		ParentFolderIDs: byID(calendarID),
	}

	resp, err := call[findItemResponse](ctx, s, "CalendarView", req)
	if err != nil {
		return nil, err
	}

	view := &remote.CalendarView{CalendarName: folder.DisplayName, Events: []remote.Event{}}
	for _, m := range resp.Messages {
		if err := checkMessage("CalendarView", m.responseMessage); err != nil {
			return nil, err
		}
		for _, it := range m.RootFolder.Items.Items {
			ev, err := toEvent(it)
			if err != nil {
				return nil, err
			}
			view.Events = append(view.Events, ev)
		}
	}
	return view, nil
}

func (s *session) getFolder(ctx context.Context, ids folderIDs) (*folderXML, error) {
	req := &getFolderRequest{
		FolderShape: shape{BaseShape: "Default"},
		FolderIDs:   ids,
	}
	resp, err := call[getFolderResponse](ctx, s, "GetFolder", req)
	if err != nil {
		return nil, err
	}
	for _, m := range resp.Messages {
		if err := checkMessage("GetFolder", m.responseMessage); err != nil {
			return nil, err
		}
		if len(m.Folders.Items) > 0 {
			return &m.Folders.Items[0], nil
		}
	}
	return nil, fmt.Errorf("%w: GetFolder: no folder returned", common.ErrRemoteService)
}

// findCalendarFolders walks the whole folder tree below msgfolderroot in
// pages of folderPageSize, keeping folders of class IPF.Appointment.
func (s *session) findCalendarFolders(ctx context.Context) ([]models.Calendar, error) {
	cals := []models.Calendar{}
	offset := 0

	for page := 0; page < maxFolderPages; page++ {
		req := &findFolderRequest{
			Traversal: "Deep",
			FolderShape: shape{
				BaseShape:            "Default",
				AdditionalProperties: properties("folder:FolderClass"),
			},
			View:            indexedPageView{MaxEntriesReturned: folderPageSize, Offset: offset, BasePoint: "Beginning"},
			ParentFolderIDs: distinguished("msgfolderroot"),
		}
		req.Restriction.IsEqualTo.FieldURI = fieldURI{FieldURI: "folder:FolderClass"}
		req.Restriction.IsEqualTo.Constant.Value = calendarFolderClass

		resp, err := call[findFolderResponse](ctx, s, "FindFolder", req)
		if err != nil {
			return nil, err
		}

		done := true
		for _, m := range resp.Messages {
			if err := checkMessage("FindFolder", m.responseMessage); err != nil {
				return nil, err
			}
			for _, f := range m.RootFolder.Folders.Items {
				cals = append(cals, models.Calendar{ID: f.FolderID.ID, Name: f.DisplayName})
			}
			root := m.RootFolder.rootFolderXML
			if !root.IncludesLastItemInRange && len(m.RootFolder.Folders.Items) > 0 {
				done = false
				offset = root.IndexedPagingOffset
				if offset <= 0 {
					offset = len(cals)
				}
			}
		}
		if done {
			return cals, nil
		}
	}
	return cals, nil
}

func (c *Client) toMessage(ctx context.Context, it itemXML) remote.Message {
	m := remote.Message{
		Subject: it.Subject,
		From:    it.From.Mailbox.Name,
		Link:    c.deepLink(it.ItemID.ID),
	}
	if m.From == "" {
		m.From = it.From.Mailbox.EmailAddress
	}
	t, err := time.Parse(time.RFC3339, it.DateTimeReceived)
	if err != nil {
		c.logger.Debug(ctx, "unparsable DateTimeReceived", "value", it.DateTimeReceived, "error", err)
		return m
	}
	m.ReceivedDate = remote.FormatReceived(t, c.cfg.Location)
	return m
}

// deepLink points the web client at one message.
func (c *Client) deepLink(itemID string) string {
	base := c.cfg.OWABaseURL
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "ItemID=" + remote.EscapeItemID(itemID) + "&exvsurl=1&viewmodel=ReadMessageItem"
}

func toEvent(it itemXML) (remote.Event, error) {
	start, err := time.Parse(time.RFC3339, it.Start)
	if err != nil {
		return remote.Event{}, fmt.Errorf("%w: CalendarView: bad start %q", common.ErrRemoteService, it.Start)
	}
	end, err := time.Parse(time.RFC3339, it.End)
	if err != nil {
		return remote.Event{}, fmt.Errorf("%w: CalendarView: bad end %q", common.ErrRemoteService, it.End)
	}
	return remote.Event{
		ID:          it.ItemID.ID,
		Subject:     it.Subject,
		Start:       start,
		End:         end,
		Location:    it.Location,
		IsAllDay:    it.IsAllDayEvent,
		IsRecurring: it.IsRecurring,
	}, nil
}
