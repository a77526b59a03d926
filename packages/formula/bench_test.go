package formula

import (
	"fmt"
	"testing"
)

func BenchmarkLargeCellPopulation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		wb := NewWorkbook(nil)
		wb.AddWorksheet("Sheet1")

		for row := 1; row <= 100; row++ {
			for col := 1; col <= 26; col++ {
				addr := fmt.Sprintf("Sheet1!%c%d", 'A'+col-1, row)
				wb.Set(addr, float64(row*col))
			}
		}
	}
}

func BenchmarkFormulaDependencyChain(b *testing.B) {
	wb := NewWorkbook(nil)
	wb.AddWorksheet("Sheet1")

	wb.Set("Sheet1!A1", 1.0)
	for i := 2; i <= 100; i++ {
		wb.Set(fmt.Sprintf("Sheet1!A%d", i), fmt.Sprintf("=A%d+1", i-1))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wb.Set("Sheet1!A1", float64(i))
		wb.Get("Sheet1!A100")
	}
}

func BenchmarkWideDependencyFanOut(b *testing.B) {
	wb := NewWorkbook(nil)
	wb.AddWorksheet("Sheet1")

	wb.Set("Sheet1!A1", 100.0)
	for i := 2; i <= 500; i++ {
		wb.Set(fmt.Sprintf("Sheet1!B%d", i), "=A1*2")
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wb.Set("Sheet1!A1", float64(i))
		wb.Calculate()
	}
}

func BenchmarkLargeRangeSUM(b *testing.B) {
	wb := NewWorkbook(nil)
	wb.AddWorksheet("Sheet1")

	for i := 1; i <= 1000; i++ {
		wb.Set(fmt.Sprintf("Sheet1!A%d", i), float64(i))
	}
	wb.Set("Sheet1!B1", "=SUM(A1:A1000)")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wb.Set("Sheet1!A1", float64(i))
		wb.Get("Sheet1!B1")
	}
}

func BenchmarkParse(b *testing.B) {
	const text = `=IFERROR(VLOOKUP($A2,Data!$A:$D,MATCH(B$1,Data!$1:$1,0),FALSE),SUMIFS(Sales[Total],Sales[Region],"North")/2)`
	for i := 0; i < b.N; i++ {
		if _, err := Parse(text, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParsedFormulaCache(b *testing.B) {
	c := NewParsedFormulaCache()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if _, err := c.Parse(fmt.Sprintf("=A%d*2+SUM(B1:B10)", i%64+1), nil); err != nil {
				b.Error(err)
				return
			}
			i++
		}
	})
}

func BenchmarkEvaluateScalar(b *testing.B) {
	expr, err := Parse(`=ROUND(SQRT(2)*PI()^2/7,4)&" "&TEXT(1234.5,"#,##0.00")`, nil)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Evaluate(expr, nil, nil)
	}
}

func BenchmarkArrayBroadcast(b *testing.B) {
	expr, err := Parse("=SUM(SEQUENCE(100,100)*SEQUENCE(1,100))", nil)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Evaluate(expr, nil, nil)
	}
}
