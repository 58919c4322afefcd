package recurring

import (
	"context"
	"strings"
	"time"

	"tablero/internal/holded"
	"tablero/internal/monday"
	"tablero/internal/storage"
	logx "tablero/pkg/logx"
)

// runMaintenance generates next month's maintenance tasks for one invoiced
// line, dispatching each template item on its frequency column.
func (o *Orchestrator) runMaintenance(ctx context.Context, r *run, client storage.Client, line holded.ProductLine) clientResult {
	var res clientResult
	log := o.lineLog(client, line)

	tier := MaintenancePlanType(line.Tags, line.Name)
	if tier == "" {
		log.Warn("no maintenance plan tier resolved", logx.Any("tags", line.Tags))
		res.fails("plan tier not resolved")
		return res
	}

	tplBoardID := o.cfg.MaintenanceTemplateBoardID
	groups, err := o.boards.Groups(ctx, tplBoardID)
	if err != nil {
		log.Error("maintenance template groups listing failed", logx.Err(err))
		res.fails("template groups: " + err.Error())
		return res
	}
	tplGroup, ok := tierGroup(groups, tier)
	if !ok {
		log.Error("no template group for plan tier", logx.String("tier", tier))
		res.fails("template group not found")
		return res
	}

	board, ok := clientBoard(r.boards, client.InternalID, maintenanceBoardRe)
	if !ok {
		log.Error("client maintenance board not found", logx.Int64("internal_id", client.InternalID))
		res.fails("client board not found")
		return res
	}

	destGroup, err := o.findOrCreateMonthGroup(ctx, board.ID, MonthTitle(r.targetMonth))
	if err != nil {
		log.Error("destination group resolution failed", logx.Err(err))
		res.fails("destination group: " + err.Error())
		return res
	}

	dupID, err := o.boards.DuplicateGroup(ctx, tplBoardID, tplGroup.ID, tplGroup.Title+" "+MonthTitle(r.targetMonth))
	if err != nil {
		log.Error("template group duplication failed", logx.Err(err))
		res.fails("duplicate group: " + err.Error())
		return res
	}
	defer o.cleanupGroup(ctx, tplBoardID, dupID)

	items, err := o.boards.GroupItems(ctx, tplBoardID, dupID)
	if err != nil {
		log.Error("duplicated group items listing failed", logx.Err(err))
		res.fails("group items: " + err.Error())
		return res
	}

	for _, item := range items {
		freq := ParseFrequency(item.ColumnText(o.cfg.FrequencyColumnID))

		movedID, err := o.boards.MoveItemToBoard(ctx, board.ID, destGroup, item.ID)
		if err != nil {
			log.Warn("item move failed", logx.String("item", item.Name), logx.Err(err))
			res.fails("move: " + err.Error())
			continue
		}

		dates := freq.Dates(r.targetMonth, o.cal)
		switch {
		case freq.Daily():
			o.fanOutDaily(ctx, r, &res, log, board.ID, destGroup, movedID, item.Name, dates)
		case freq.Weekly():
			o.fanOutWeekly(ctx, r, &res, log, board.ID, destGroup, movedID, item.Name, dates)
		default:
			// mensual family and unknown tags: zero or one date.
			if len(dates) == 0 {
				// The frequency skips this month; the moved placeholder is not needed.
				if err := o.boards.DeleteItem(ctx, movedID); err != nil {
					log.Warn("placeholder item delete failed", logx.String("item", item.Name), logx.Err(err))
					res.fails("delete: " + err.Error())
				}
				continue
			}
			due := dates[0]
			if err := o.setDate(ctx, board.ID, movedID, due); err != nil {
				log.Warn("date column update failed", logx.String("item", item.Name), logx.Err(err))
				res.fails("date column: " + err.Error())
				continue
			}
			res.ok++
			o.createNotificationItem(ctx, r, board.ID, destGroup, movedID, item.Name, due)
		}
	}
	return res
}

// fanOutDaily clones the moved item once per scheduled business day and then
// retires the original, so every dated task is a uniform clone.
func (o *Orchestrator) fanOutDaily(ctx context.Context, r *run, res *clientResult, log logx.Logger, boardID, groupID, movedID, name string, dates []time.Time) {
	for _, due := range dates {
		clone, err := o.boards.DuplicateItem(ctx, boardID, movedID)
		if err != nil {
			log.Warn("item duplication failed", logx.String("item", name), logx.Err(err))
			res.fails("duplicate: " + err.Error())
			continue
		}
		if err := o.setDate(ctx, boardID, clone.ID, due); err != nil {
			log.Warn("date column update failed", logx.String("item", name), logx.Err(err))
			res.fails("date column: " + err.Error())
			continue
		}
		res.ok++
		o.createNotificationItem(ctx, r, boardID, groupID, clone.ID, cloneName(clone, name), due)
	}
	if err := o.boards.DeleteItem(ctx, movedID); err != nil {
		log.Warn("daily source item delete failed", logx.String("item", name), logx.Err(err))
	}
}

// fanOutWeekly dates the moved item on the first scheduled Wednesday and
// duplicates it for the rest, so later edits to the first item's name carry
// over to its clones.
func (o *Orchestrator) fanOutWeekly(ctx context.Context, r *run, res *clientResult, log logx.Logger, boardID, groupID, movedID, name string, dates []time.Time) {
	for i, due := range dates {
		itemID := movedID
		itemName := name
		if i > 0 {
			clone, err := o.boards.DuplicateItem(ctx, boardID, movedID)
			if err != nil {
				log.Warn("item duplication failed", logx.String("item", name), logx.Err(err))
				res.fails("duplicate: " + err.Error())
				continue
			}
			itemID = clone.ID
			itemName = cloneName(clone, name)
		}
		if err := o.setDate(ctx, boardID, itemID, due); err != nil {
			log.Warn("date column update failed", logx.String("item", itemName), logx.Err(err))
			res.fails("date column: " + err.Error())
			continue
		}
		res.ok++
		o.createNotificationItem(ctx, r, boardID, groupID, itemID, itemName, due)
	}
}

func (o *Orchestrator) setDate(ctx context.Context, boardID, itemID string, due time.Time) error {
	return o.boards.ChangeColumnValue(ctx, boardID, itemID, o.cfg.DateColumnID, monday.DateValue(due))
}

// findOrCreateMonthGroup reuses an existing group with the exact month title
// before creating one (unlike the social branch, which always creates).
func (o *Orchestrator) findOrCreateMonthGroup(ctx context.Context, boardID, title string) (string, error) {
	groups, err := o.boards.Groups(ctx, boardID)
	if err != nil {
		return "", err
	}
	for _, g := range groups {
		if g.Title == title {
			return g.ID, nil
		}
	}
	return o.boards.CreateGroup(ctx, boardID, title)
}

// tierGroup picks the template group whose title mentions the plan tier.
func tierGroup(groups []monday.Group, tier string) (monday.Group, bool) {
	t := strings.ToLower(tier)
	for _, g := range groups {
		if strings.Contains(strings.ToLower(g.Title), t) {
			return g, true
		}
	}
	return monday.Group{}, false
}

func cloneName(clone monday.Item, fallback string) string {
	if clone.Name != "" {
		return clone.Name
	}
	return fallback
}
