package handler

import (
	"encoding/csv"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/tiammomo/mamoji-sub001/internal/service"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

// ExportHandler 导出当前账本的有效交易
type ExportHandler struct {
	Tx *service.TransactionService
}

func NewExportHandler(tx *service.TransactionService) *ExportHandler {
	return &ExportHandler{Tx: tx}
}

var exportHeaders = []string{"ID", "类型", "金额", "币种", "账户", "分类", "预算", "退款原交易", "备注", "日期"}

var typeText = map[string]string{
	"income":  "收入",
	"expense": "支出",
	"refund":  "退款",
}

func idText(id *uint) string {
	if id == nil {
		return ""
	}
	return fmt.Sprint(*id)
}

func exportRow(t service.TransactionView) []string {
	return []string{
		fmt.Sprint(t.ID),
		typeText[t.Type],
		t.Amount,
		t.Currency,
		idText(t.AccountID),
		idText(t.CategoryID),
		idText(t.BudgetID),
		idText(t.RefundOfID),
		t.Note,
		t.OccurredAt.Format("2006-01-02"),
	}
}

func exportName(ext string) string {
	return fmt.Sprintf("attachment; filename=\"transactions_%s.%s\"", time.Now().Format("20060102"), ext)
}

// ExportCSV 导出交易为 CSV
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	list, err := h.Tx.Export(c.Request.Context())
	if err != nil {
		util.Fail(c, err)
		return
	}

	// 设置响应头
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", exportName("csv"))

	// UTF-8 BOM（让 Excel 正确识别中文）
	_, _ = c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	_ = writer.Write(exportHeaders)
	for _, t := range list {
		_ = writer.Write(exportRow(t))
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = c.Error(err)
	}
}

// ExportXLSX 导出交易为 XLSX
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	list, err := h.Tx.Export(c.Request.Context())
	if err != nil {
		util.Fail(c, err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	sheetName := "交易明细"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		util.Fail(c, err)
		return
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	// 表头
	for i, title := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, title)
	}
	// 数据
	for r, t := range list {
		for i, v := range exportRow(t) {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	// 设置列宽
	_ = f.SetColWidth(sheetName, "A", "H", 12)
	_ = f.SetColWidth(sheetName, "I", "I", 30)
	_ = f.SetColWidth(sheetName, "J", "J", 12)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", exportName("xlsx"))
	if err := f.Write(c.Writer); err != nil {
		_ = c.Error(err)
	}
}
