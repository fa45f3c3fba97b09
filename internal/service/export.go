package service

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	exportSheet    = "Conversations"
	exportPageSize = 100
	exportMaxRows  = 10000
)

var exportHeaders = []interface{}{
	"Conversation", "Visitor", "Email", "Messages", "Unread", "Last message", "Last sender", "Last activity (UTC)",
}

func (s *chatService) ExportInbox(ctx context.Context, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return err
	}

	row := 2
	for offset := 0; offset < exportMaxRows; offset += exportPageSize {
		page, err := s.chatRepo.ListConversations(ctx, exportPageSize, offset)
		if err != nil {
			return err
		}
		for _, c := range page {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			values := []interface{}{
				c.ConversationID,
				c.VisitorName,
				c.VisitorEmail,
				c.MessageCount,
				c.UnreadCount,
				c.LastMessage,
				string(c.LastSenderType),
				c.LastMessageAt.UTC().Format("2006-01-02 15:04:05"),
			}
			if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
				return err
			}
			row++
		}
		if len(page) < exportPageSize {
			break
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "A", 34); err != nil {
		return err
	}
	if err := f.SetColWidth(exportSheet, "F", "F", 60); err != nil {
		return err
	}

	s.log.Info("Inbox exported", "rows", row-2)
	_, err := f.WriteTo(w)
	return err
}
