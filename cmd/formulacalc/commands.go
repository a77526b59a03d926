package main

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/efp"
	"github.com/xuri/excelize/v2"

	"github.com/vogtb/go-formula/packages/formula"
)

func (e *env) newWorkbook() *formula.Workbook {
	return formula.NewWorkbook(&formula.WorkbookOptions{
		Settings: e.settings,
		Parse:    e.parse,
	})
}

// runEval evaluates one formula against an empty worksheet
func runEval(e *env, args []string) error {
	wb := e.newWorkbook()
	if err := wb.AddWorksheet("Sheet1"); err != nil {
		return err
	}
	v, err := wb.Evaluate(args[0], "")
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, v.String())
	return nil
}

// runLint parses a formula, prints its canonical form and checks every
// function name the efp tokenizer finds against the registry
func runLint(e *env, args []string) error {
	text := args[0]
	expr, err := formula.Parse(text, &e.parse)
	if err != nil {
		var perr *formula.ParseError
		if errors.As(err, &perr) {
			fmt.Fprintf(e.stdout, "%s\n%s^ %s\n", text, strings.Repeat(" ", perr.Offset), perr.Message)
		}
		return err
	}
	fmt.Fprintln(e.stdout, formula.Format(expr, &formula.FormatOptions{
		IncludeLeadingEquals: true,
		DecimalSeparator:     e.parse.DecimalSeparator,
		ArgumentSeparator:    e.parse.ArgumentSeparator,
	}))

	registry := formula.DefaultRegistry()
	ours := make(map[string]bool)
	formula.Walk(expr, func(n formula.Expression) bool {
		if call, ok := n.(*formula.FunctionCallExpr); ok {
			ours[strings.ToUpper(call.Name)] = true
		}
		return true
	})

	problems := 0
	seen := make(map[string]bool)
	ps := efp.ExcelParser()
	for _, token := range ps.Parse(strings.TrimPrefix(text, "=")) {
		if token.TType != efp.TokenTypeFunction || token.TSubType != efp.TokenSubTypeStart {
			continue
		}
		name := strings.ToUpper(token.TValue)
		if seen[name] {
			continue
		}
		seen[name] = true
		if !ours[name] {
			e.logger.Debug("tokenizers disagree", "function", name)
		}
		if _, ok := registry.TryGetFunction(name); ok {
			continue
		}
		problems++
		if suggestions := registry.Suggest(name, 3); len(suggestions) > 0 {
			fmt.Fprintf(e.stdout, "unknown function %s, did you mean %s?\n", name, strings.Join(suggestions, ", "))
		} else {
			fmt.Fprintf(e.stdout, "unknown function %s\n", name)
		}
	}
	if problems > 0 {
		return fmt.Errorf("%d unknown function(s)", problems)
	}
	return nil
}

// runWorkbook loads an xlsx file and prints every formula cell with its
// value. args[1], when present, restricts the output to one sheet.
func runWorkbook(e *env, args []string) error {
	f, err := excelize.OpenFile(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	wb := e.newWorkbook()
	if err := loadWorkbook(e, f, wb); err != nil {
		return err
	}
	wb.Calculate()
	hits, misses := wb.CacheStats()
	e.logger.Info("workbook calculated", "file", args[0], "cache_hits", hits, "cache_misses", misses)

	sheets := wb.ListWorksheets()
	if len(args) > 1 {
		sheets = []string{args[1]}
	}
	w := bufio.NewWriter(e.stdout)
	for _, sheet := range sheets {
		cells, err := wb.FormulaCells(sheet)
		if err != nil {
			return err
		}
		for _, cell := range cells {
			address := cell.String()
			text, _, err := wb.Formula(address)
			if err != nil {
				return err
			}
			v, err := wb.Get(address)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", address, text, v.String())
		}
	}
	return w.Flush()
}

// loadWorkbook copies sheets, cells, defined names and tables from an xlsx
// file. cells the engine cannot read are logged and skipped.
func loadWorkbook(e *env, f *excelize.File, wb *formula.Workbook) error {
	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		if err := wb.AddWorksheet(sheet); err != nil {
			return err
		}
	}

	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return err
		}
		cells := 0
		for r, row := range rows {
			for c, raw := range row {
				name, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return err
				}
				content, ok := cellContent(f, sheet, name, raw)
				if !ok {
					continue
				}
				address := formula.QuoteSheetName(sheet) + "!" + name
				if err := wb.Set(address, content); err != nil {
					e.logger.Warn("skipping cell", "cell", address, "err", err)
					continue
				}
				cells++
			}
		}
		e.logger.Debug("sheet loaded", "sheet", sheet, "cells", cells)
	}

	for _, dn := range f.GetDefinedName() {
		scope := dn.Scope
		if strings.EqualFold(scope, "Workbook") {
			scope = ""
		}
		if err := wb.DefineName(dn.Name, dn.RefersTo, scope); err != nil {
			e.logger.Warn("skipping defined name", "name", dn.Name, "err", err)
		}
	}

	for _, sheet := range sheets {
		tables, err := f.GetTables(sheet)
		if err != nil {
			return err
		}
		for _, t := range tables {
			if err := wb.DefineTable(formula.Table{Name: t.Name, Sheet: sheet, Range: t.Range}); err != nil {
				e.logger.Warn("skipping table", "table", t.Name, "err", err)
			}
		}
	}
	return nil
}

// cellContent converts an xlsx cell to workbook content. formulas win over
// their cached values.
func cellContent(f *excelize.File, sheet, cell, raw string) (any, bool) {
	if text, err := f.GetCellFormula(sheet, cell); err == nil && text != "" {
		return "=" + text, true
	}
	if raw == "" {
		return nil, false
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return raw, true
	}
	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "TRUE"), true
	case excelize.CellTypeError:
		if code, ok := formula.ParseErrorCode(raw); ok {
			return code, true
		}
	case excelize.CellTypeNumber, excelize.CellTypeDate, excelize.CellTypeUnset:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n, true
		}
	}
	return raw, true
}
