package pipeline

import "go-metrics-pipeline/internal/model"

// TransformationBuilder accumulates instructions in call order.
//
//	t := NewTransformationBuilder().
//		Select("id", "value", "category").
//		Filter("value > 5").
//		Aggregate(model.Count, model.Target("value_count", "value")).
//		GroupBy("category").
//		Build()
//
// The builder does not check that instructions fit together or that the
// columns exist; such problems surface when the transformation is planned.
type TransformationBuilder struct {
	instructions []model.Instruction
}

func NewTransformationBuilder() *TransformationBuilder {
	return &TransformationBuilder{}
}

func (b *TransformationBuilder) push(ins model.Instruction) *TransformationBuilder {
	b.instructions = append(b.instructions, ins)
	return b
}

func (b *TransformationBuilder) Select(columns ...string) *TransformationBuilder {
	return b.push(model.Select{Columns: columns})
}

// GroupBy declares grouping keys. Call it without arguments for a global
// aggregation.
func (b *TransformationBuilder) GroupBy(columns ...string) *TransformationBuilder {
	return b.push(model.GroupBy{Columns: columns})
}

func (b *TransformationBuilder) Aggregate(kind model.AggregateType, targets ...model.AggregateTarget) *TransformationBuilder {
	return b.push(model.Aggregate{Kind: kind, Targets: targets})
}

func (b *TransformationBuilder) Filter(predicate string) *TransformationBuilder {
	return b.push(model.Filter{Predicate: predicate})
}

func (b *TransformationBuilder) Literal(alias string, value any) *TransformationBuilder {
	return b.push(model.Literal{Alias: alias, Value: value})
}

func (b *TransformationBuilder) NewCol(alias string, expr model.Expr) *TransformationBuilder {
	return b.push(model.NewCol{Alias: alias, Expr: expr})
}

// Build returns the immutable Transformation. Later calls on b do not
// affect transformations it already built.
func (b *TransformationBuilder) Build() model.Transformation {
	return model.NewTransformation(b.instructions...)
}
