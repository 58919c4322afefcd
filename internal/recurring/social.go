package recurring

import (
	"context"
	"time"

	"tablero/internal/holded"
	"tablero/internal/monday"
	"tablero/internal/storage"
	logx "tablero/pkg/logx"
)

// runSocial generates next month's social-media tasks for one invoiced line.
//
// The destination month group is always created fresh, even if one with the
// same title already exists; the maintenance branch reuses instead. The
// asymmetry is inherited behavior and kept on purpose.
func (o *Orchestrator) runSocial(ctx context.Context, r *run, client storage.Client, line holded.ProductLine) clientResult {
	var res clientResult
	log := o.lineLog(client, line)

	tpl, ok := templateBoard(r.boards, o.cfg.SocialTemplateBoard)
	if !ok {
		log.Error("social template board not found", logx.String("pattern", o.cfg.SocialTemplateBoard))
		res.fails("template board not found")
		return res
	}

	groups, err := o.boards.Groups(ctx, tpl.ID)
	if err != nil {
		log.Error("template groups listing failed", logx.Err(err))
		res.fails("template groups: " + err.Error())
		return res
	}
	tplGroup, ok := socialTemplateGroup(groups, client.InternalID)
	if !ok {
		log.Error("no template group for client", logx.Int64("internal_id", client.InternalID))
		res.fails("template group not found")
		return res
	}

	board, ok := clientBoard(r.boards, client.InternalID, socialBoardRe)
	if !ok {
		log.Error("client social board not found", logx.Int64("internal_id", client.InternalID))
		res.fails("client board not found")
		return res
	}

	destGroup, err := o.boards.CreateGroup(ctx, board.ID, MonthTitle(r.targetMonth))
	if err != nil {
		log.Error("destination group creation failed", logx.Err(err))
		res.fails("destination group: " + err.Error())
		return res
	}

	dupID, err := o.boards.DuplicateGroup(ctx, tpl.ID, tplGroup.ID, tplGroup.Title+" "+MonthTitle(r.targetMonth))
	if err != nil {
		log.Error("template group duplication failed", logx.Err(err))
		res.fails("duplicate group: " + err.Error())
		return res
	}
	defer o.cleanupGroup(ctx, tpl.ID, dupID)

	items, err := o.boards.GroupItems(ctx, tpl.ID, dupID)
	if err != nil {
		log.Error("duplicated group items listing failed", logx.Err(err))
		res.fails("group items: " + err.Error())
		return res
	}

	for _, item := range items {
		estimated := item.ColumnText(o.cfg.EstimatedDateColumnID)
		if estimated == "" {
			continue
		}

		newID, err := o.boards.MoveItemToBoard(ctx, board.ID, destGroup, item.ID)
		if err != nil {
			log.Warn("item move failed", logx.String("item", item.Name), logx.Err(err))
			res.fails("move: " + err.Error())
			continue
		}

		day, err := parseEstimatedDay(estimated, o.rng)
		if err != nil {
			// Item stays on the client board with its date unset.
			log.Warn("estimated date unparseable", logx.String("item", item.Name), logx.String("text", estimated), logx.Err(err))
			res.fails("estimated date: " + err.Error())
			continue
		}
		date := o.cal.NextBusinessDay(time.Date(
			r.targetMonth.Year(), r.targetMonth.Month(), day,
			0, 0, 0, 0, r.targetMonth.Location()))

		if err := o.boards.ChangeColumnValue(ctx, board.ID, newID, o.cfg.DateColumnID, monday.DateValue(date)); err != nil {
			log.Warn("date column update failed", logx.String("item", item.Name), logx.Err(err))
			res.fails("date column: " + err.Error())
			continue
		}
		res.ok++
	}
	return res
}

// socialTemplateGroup picks the group whose title carries the client's
// internal id as numeric prefix, falling back to the "*" default group.
func socialTemplateGroup(groups []monday.Group, internalID int64) (monday.Group, bool) {
	var fallback *monday.Group
	for i, g := range groups {
		if id, ok := leadingID(g.Title); ok && id == internalID {
			return g, true
		}
		if g.Title == "*" && fallback == nil {
			fallback = &groups[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return monday.Group{}, false
}
